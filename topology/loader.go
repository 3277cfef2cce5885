package topology

import (
	"fmt"
	"io"

	"github.com/BurntSushi/toml"
	log "github.com/sirupsen/logrus"
)

// File is the TOML (and JSON) layout of a topology description
type File struct {
	Vertices []VertexEntry `json:"vertices" toml:"vertices"`
	Links    []LinkEntry   `json:"links" toml:"links"`
}

type VertexEntry struct {
	ID          string   `json:"id" toml:"id"`
	Pop         bool     `json:"pop" toml:"pop"`
	Accelerated []string `json:"accelerated,omitempty" toml:"accelerated"`
}

// LinkEntry describes a link; Directed links only produce the From->To edge
type LinkEntry struct {
	From      string  `json:"from" toml:"from"`
	To        string  `json:"to" toml:"to"`
	Bandwidth float64 `json:"bandwidth" toml:"bandwidth"`
	Delay     float64 `json:"delay" toml:"delay"`
	Directed  bool    `json:"directed,omitempty" toml:"directed"`
}

// LoadFile reads a topology from a TOML file
func LoadFile(path string) (*Topology, error) {
	var f File
	if _, err := toml.DecodeFile(path, &f); err != nil {
		return nil, fmt.Errorf("error decoding topology file %s: %w", path, err)
	}
	t, err := f.Build()
	if err != nil {
		return nil, fmt.Errorf("invalid topology file %s: %w", path, err)
	}
	log.Infof("topology loaded from %s, vertex num: %d, edge num: %d", path, t.VertexCount(), t.EdgeCount())
	return t, nil
}

// Load reads a topology from TOML content
func Load(r io.Reader) (*Topology, error) {
	var f File
	if _, err := toml.NewDecoder(r).Decode(&f); err != nil {
		return nil, fmt.Errorf("error decoding topology: %w", err)
	}
	return f.Build()
}

func (f File) Build() (*Topology, error) {
	b := NewBuilder()
	for _, v := range f.Vertices {
		if v.Pop {
			b.AddPop(v.ID, v.Accelerated...)
		} else {
			b.AddVertex(v.ID)
		}
	}
	for _, l := range f.Links {
		w := Weight{Bandwidth: l.Bandwidth, Delay: l.Delay}
		if l.Directed {
			b.AddEdge(l.From, l.To, w)
		} else {
			b.AddLink(l.From, l.To, w)
		}
	}
	return b.Build()
}

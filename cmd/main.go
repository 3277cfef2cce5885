package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	log "github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	"sfcplacement/api"
	"sfcplacement/config"
	"sfcplacement/deploy"
	"sfcplacement/invalidation"
)

func setupLogging(cfg config.LogConfig) {
	os.MkdirAll(cfg.Dir, 0755)

	// Configure log rotation with lumberjack
	fileLogger := &lumberjack.Logger{
		Filename:   filepath.Join(cfg.Dir, "sfc_placement.log"),
		MaxSize:    100, // MB
		MaxBackups: 7,
		MaxAge:     30, // Days
		Compress:   true,
	}

	multiWriter := io.MultiWriter(os.Stdout, fileLogger)
	log.SetOutput(multiWriter)

	log.SetFormatter(&log.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	level, _ := log.ParseLevel(cfg.Level)
	log.SetLevel(level)

	log.Infof("Logging initialized: file=%s/sfc_placement.log, stdout=enabled", cfg.Dir)
}

func main() {
	path := config.Path()
	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("loading configuration failed, err:%v", err)
		return
	}
	setupLogging(cfg.Log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalChan
		log.Infof("received signal, shutting down")
		cancel()
	}()

	topo, sol, err := run(ctx, cfg)
	if err != nil {
		log.Fatalf("placement failed, err:%v", err)
		return
	}

	holder := invalidation.NewHolder()
	holder.Set(sol, topo.VertexCount())

	if cfg.Deploy.Enabled {
		deployer := deploy.NewDeployer(deploy.NewHTTPInstantiator(cfg.Deploy.BaseURL), cfg.Deploy.Workers)
		instances, err := deployer.Deploy(ctx, sol)
		if err != nil {
			log.Errorf("deployment failed, removing %d instances, err:%v", len(instances), err)
			if err := deployer.Undeploy(context.Background(), instances); err != nil {
				log.Errorf("rollback incomplete, err:%v", err)
			}
		}
	}

	if !cfg.API.Enabled && !cfg.Etcd.Enabled {
		return
	}

	if cfg.Etcd.Enabled {
		client, err := invalidation.Dial(cfg.Etcd.EtcdConfig)
		if err != nil {
			log.Fatalf("connecting etcd failed, err:%v", err)
			return
		}
		defer client.Close()

		watcher := invalidation.NewEtcdWatcher(client, cfg.Etcd.Key, holder)
		go func() {
			if err := watcher.Run(ctx); err != nil {
				log.Errorf("etcd watch stopped, err:%v", err)
			}
		}()
	}

	if cfg.API.Enabled {
		server := api.NewServer(topo, holder, cfg.Solver.Timeout)
		if err := server.ListenAndServe(ctx, cfg.API.Addr); err != nil {
			log.Errorf("api server failed, err:%v", err)
		}
		return
	}

	<-ctx.Done()
}

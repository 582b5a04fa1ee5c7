package main

import (
	"strconv"

	"github.com/go-kit/log/level"
	"github.com/keywheel/go-keywheel-server/global"
	"github.com/keywheel/go-keywheel-server/repository"
	"github.com/keywheel/go-keywheel-server/services"
	"github.com/keywheel/go-keywheel-server/types"
	"github.com/keywheel/go-keywheel-server/vault"
)

// Configure the blob repository backing rotation state, selected by config
func ConfigBlobRepository(env *types.Environment) repository.BlobRepository {
	switch global.Conf.Storage.Type {
	case "couchdb":
		repoUrl := global.Conf.CouchDB.Scheme + "://" + global.Conf.CouchDB.Host + ":" + strconv.Itoa(global.Conf.CouchDB.Port)
		repo, err := repository.NewCouchDBRepository(repoUrl, "keywheel_state", global.Conf.CouchDB.Username, global.Conf.CouchDB.Password, false)
		if err != nil {
			level.Error(global.Logger).Log("msg", "failed to create couchdb repository", "err", err)
			panic(err)
		}
		return repo
	case "redis":
		return repository.NewRedisRepository(env.RedisClient)
	default:
		path := global.Conf.Storage.Path
		if path == "" {
			path = "./data"
		}
		repo, err := repository.NewFileRepository(path)
		if err != nil {
			level.Error(global.Logger).Log("msg", "failed to create file repository", "err", err)
			panic(err)
		}
		return repo
	}
}

// Configure the keypair vault (OS keyring by default)
func ConfigVault(conf *global.Config) vault.KeypairSource {
	if conf.Keywheel.VaultType == "memory" {
		return vault.NewMemoryVault()
	}
	serviceName := conf.Keywheel.VaultService
	if serviceName == "" {
		serviceName = "keywheel"
	}
	kv, err := vault.NewKeyringVault(serviceName)
	if err != nil {
		level.Error(global.Logger).Log("msg", "failed to open key vault", "err", err)
		panic(err)
	}
	return kv
}

// Wire the rotation core: store on the blob repository, relay transport,
// protocol and manager; then start the monitor
func ConfigRotationManager(env *types.Environment, repo repository.BlobRepository, keypairSource vault.KeypairSource, sink services.EventSink) *services.RotationManager {
	store := services.NewRotationStore(repo)
	transport := services.NewRelayTransport(global.Conf.Relay)
	protocol := services.NewRotationProtocol(keypairSource, transport)

	manager := services.NewRotationManager(env, store, protocol, sink, global.Conf.Keywheel)
	if err := manager.StartMonitor(); err != nil {
		level.Error(global.Logger).Log("msg", "failed to start rotation monitor", "err", err)
		panic(err)
	}
	return manager
}

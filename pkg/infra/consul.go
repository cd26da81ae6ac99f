package infra

import (
	"time"

	"github.com/fystack/modelstore/pkg/config"
	"github.com/fystack/modelstore/pkg/logger"
	"github.com/hashicorp/consul/api"
)

type ConsulKV interface {
	Put(kv *api.KVPair, options *api.WriteOptions) (*api.WriteMeta, error)
	Get(key string, options *api.QueryOptions) (*api.KVPair, *api.QueryMeta, error)
	Delete(key string, options *api.WriteOptions) (*api.WriteMeta, error)
	List(prefix string, options *api.QueryOptions) (api.KVPairs, *api.QueryMeta, error)
}

// NewConsulClient builds a client from cfg and pings the leader to verify
// connectivity.
func NewConsulClient(cfg *config.ConsulConfig) (*api.Client, error) {
	consulConfig := api.DefaultConfig()
	consulConfig.Address = cfg.Address
	consulConfig.Token = cfg.Token
	consulConfig.WaitTime = 10 * time.Second
	if cfg.Username != "" || cfg.Password != "" {
		consulConfig.HttpAuth = &api.HttpBasicAuth{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}

	logger.Info("Consul config",
		"address", consulConfig.Address,
		"wait_time", consulConfig.WaitTime,
		"token_length", len(consulConfig.Token),
	)

	client, err := api.NewClient(consulConfig)
	if err != nil {
		return nil, err
	}

	if _, err := client.Status().Leader(); err != nil {
		return nil, err
	}

	return client, nil
}

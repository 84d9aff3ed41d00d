package discovery

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/example/bookadmin/pkg/config"
	clientv3 "go.etcd.io/etcd/client/v3"
)

// leaseTTL is how long a registration outlives its last keep-alive, in seconds.
const leaseTTL = 30

type ServiceDiscovery struct {
	client *clientv3.Client
	config *config.EtcdConfig
}

// ServiceInstance is one registered HTTP endpoint. The etcd value is its
// base URL, e.g. http://10.0.0.4:5000/api.
type ServiceInstance struct {
	Name     string
	Scheme   string
	Host     string
	Port     int
	BasePath string
}

// URL renders the instance base URL.
func (i *ServiceInstance) URL() string {
	scheme := i.Scheme
	if scheme == "" {
		scheme = "http"
	}
	host := i.Host
	if i.Port > 0 {
		host = fmt.Sprintf("%s:%d", i.Host, i.Port)
	}
	return (&url.URL{Scheme: scheme, Host: host, Path: i.BasePath}).String()
}

func (i *ServiceInstance) key(prefix string) string {
	return fmt.Sprintf("%s%s/%s:%d", prefix, i.Name, i.Host, i.Port)
}

// parseInstance reads a registered value. Bare host:port values from older
// registrations are read as http.
func parseInstance(name, value string) (*ServiceInstance, error) {
	if !strings.Contains(value, "://") {
		value = "http://" + value
	}
	u, err := url.Parse(value)
	if err != nil {
		return nil, err
	}
	inst := &ServiceInstance{
		Name:     name,
		Scheme:   u.Scheme,
		Host:     u.Hostname(),
		BasePath: u.Path,
	}
	if p := u.Port(); p != "" {
		inst.Port, _ = strconv.Atoi(p)
	}
	return inst, nil
}

func NewServiceDiscovery(cfg *config.EtcdConfig) (*ServiceDiscovery, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	return &ServiceDiscovery{
		client: cli,
		config: cfg,
	}, nil
}

func (sd *ServiceDiscovery) Register(ctx context.Context, instance *ServiceInstance) error {
	lease, err := sd.client.Grant(ctx, leaseTTL)
	if err != nil {
		return fmt.Errorf("failed to create lease: %w", err)
	}

	_, err = sd.client.Put(ctx, instance.key(sd.config.Prefix), instance.URL(), clientv3.WithLease(lease.ID))
	if err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}

	ch, kaerr := sd.client.KeepAlive(ctx, lease.ID)
	if kaerr != nil {
		return fmt.Errorf("failed to keep alive: %w", kaerr)
	}

	// drain keep-alive responses until the lease or ctx ends
	go func() {
		for range ch {
		}
	}()

	return nil
}

func (sd *ServiceDiscovery) Discover(ctx context.Context, serviceName string) ([]*ServiceInstance, error) {
	key := fmt.Sprintf("%s%s/", sd.config.Prefix, serviceName)

	resp, err := sd.client.Get(ctx, key, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to discover service: %w", err)
	}

	var instances []*ServiceInstance
	for _, kv := range resp.Kvs {
		inst, err := parseInstance(serviceName, string(kv.Value))
		if err != nil {
			continue
		}
		instances = append(instances, inst)
	}

	return instances, nil
}

func (sd *ServiceDiscovery) Deregister(ctx context.Context, instance *ServiceInstance) error {
	_, err := sd.client.Delete(ctx, instance.key(sd.config.Prefix))
	if err != nil {
		return fmt.Errorf("failed to deregister service: %w", err)
	}
	return nil
}

func (sd *ServiceDiscovery) Close() error {
	return sd.client.Close()
}

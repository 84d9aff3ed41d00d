package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix scopes environment overrides, e.g. BOOKADMIN_UPSTREAM_BASE_URL.
const EnvPrefix = "BOOKADMIN"

type Config struct {
	Gateway  GatewayConfig  `mapstructure:"gateway"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Orders   OrdersConfig   `mapstructure:"orders"`
	Invoice  InvoiceConfig  `mapstructure:"invoice"`
	Etcd     EtcdConfig     `mapstructure:"etcd"`
	Redis    RedisConfig    `mapstructure:"redis"`
	MySQL    MySQLConfig    `mapstructure:"mysql"`
	MongoDB  MongoDBConfig  `mapstructure:"mongodb"`
	Log      LogConfig      `mapstructure:"log"`
}

type GatewayConfig struct {
	Name string `mapstructure:"name"`
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
}

// UpstreamConfig points at the bookstore REST API. ServiceName is looked up
// in etcd first; BaseURL is the fallback.
type UpstreamConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	ServiceName  string        `mapstructure:"service_name"`
	Timeout      time.Duration `mapstructure:"timeout"`
	ServiceToken string        `mapstructure:"service_token"`
}

type CatalogConfig struct {
	EnrichTimeout  time.Duration `mapstructure:"enrich_timeout"`
	MaxConcurrency int           `mapstructure:"max_concurrency"`
}

type OrdersConfig struct {
	GSTRate             float64       `mapstructure:"gst_rate"`
	AllowStatusOverride bool          `mapstructure:"allow_status_override"`
	ViewCacheTTL        time.Duration `mapstructure:"view_cache_ttl"`
}

type InvoiceConfig struct {
	SellerName     string        `mapstructure:"seller_name"`
	SellerAddress  string        `mapstructure:"seller_address"`
	CurrencySymbol string        `mapstructure:"currency_symbol"`
	ChromePath     string        `mapstructure:"chrome_path"`
	PDFTimeout     time.Duration `mapstructure:"pdf_timeout"`
}

type EtcdConfig struct {
	Endpoints   []string      `mapstructure:"endpoints"`
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	Prefix      string        `mapstructure:"prefix"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

type MySQLConfig struct {
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	Database     string `mapstructure:"database"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type MongoDBConfig struct {
	URI        string `mapstructure:"uri"`
	Database   string `mapstructure:"database"`
	Collection string `mapstructure:"collection"`
}

type LogConfig struct {
	Level       string   `mapstructure:"level"`
	Encoding    string   `mapstructure:"encoding"`
	OutputPaths []string `mapstructure:"output_paths"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("gateway.name", "order-desk")
	v.SetDefault("gateway.host", "0.0.0.0")
	v.SetDefault("gateway.port", 8080)

	v.SetDefault("upstream.base_url", "http://localhost:5000/api")
	v.SetDefault("upstream.service_name", "bookstore-api")
	v.SetDefault("upstream.timeout", 15*time.Second)

	v.SetDefault("catalog.enrich_timeout", 5*time.Second)
	v.SetDefault("catalog.max_concurrency", 8)

	v.SetDefault("orders.gst_rate", 0.18)
	v.SetDefault("orders.allow_status_override", false)
	v.SetDefault("orders.view_cache_ttl", 2*time.Minute)

	v.SetDefault("invoice.seller_name", "Bookstore")
	v.SetDefault("invoice.currency_symbol", "₹")
	v.SetDefault("invoice.pdf_timeout", 30*time.Second)

	v.SetDefault("etcd.dial_timeout", 5*time.Second)
	v.SetDefault("etcd.prefix", "/services/")

	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.pool_size", 10)

	v.SetDefault("mongodb.database", "order_desk")
	v.SetDefault("mongodb.collection", "audit_logs")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "json")
	v.SetDefault("log.output_paths", []string{"stdout"})
}

func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Upstream.BaseURL == "" && c.Upstream.ServiceName == "" {
		return fmt.Errorf("upstream.base_url or upstream.service_name is required")
	}
	if c.Orders.GSTRate < 0 {
		return fmt.Errorf("orders.gst_rate must not be negative, got %v", c.Orders.GSTRate)
	}
	if c.Catalog.MaxConcurrency < 1 {
		return fmt.Errorf("catalog.max_concurrency must be at least 1, got %d", c.Catalog.MaxConcurrency)
	}
	return nil
}

func (c *MySQLConfig) DSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.Username, c.Password, c.Host, c.Port, c.Database)
}

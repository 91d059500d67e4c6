package metrics

// Config defines the metrics endpoint.
type Config struct {
	// Address is the listen address of the /metrics server, for example ":9090".
	Address string `yaml:"address" envconfig:"METRICS_ADDRESS"`

	// ServiceName is attached to every metric as the "service" label.
	ServiceName string `yaml:"service_name" envconfig:"SERVICE_NAME"`

	// EnableDefaultCollectors registers the Go runtime, process and build
	// info collectors.
	EnableDefaultCollectors bool `yaml:"enable_default_collectors" envconfig:"METRICS_ENABLE_DEFAULT_COLLECTORS"`
}

package logger

const (
	Debug   = "debug"
	Info    = "info"
	Warning = "warning"
	Error   = "error"
)

// Config controls how the zap logger is built.
type Config struct {
	// Level is one of debug, info, warning or error. Anything else means info.
	Level string `yaml:"level" envconfig:"ZAP_LOGGER_LEVEL"`

	// ServiceName is attached to every entry as the "service" field.
	ServiceName string `yaml:"service_name" envconfig:"SERVICE_NAME"`

	// EnableTracing adds trace_id and span_id to entries logged through the
	// *WithContext methods when the context carries an OpenTelemetry span.
	EnableTracing bool `yaml:"enable_tracing" envconfig:"LOGGER_ENABLE_TRACING"`

	// OutputPaths defaults to stderr.
	OutputPaths []string `yaml:"output_paths"`
}

// Package minioopts provides options for MinIO object storage configuration.
package minioopts

import (
	"fmt"
	"os"

	"github.com/kart-io/docchat/pkg/options"
	"github.com/spf13/pflag"
)

var _ options.IOptions = (*Options)(nil)

// Options contains MinIO client configuration.
type Options struct {
	// Endpoint is the MinIO server address (host:port).
	Endpoint string `json:"endpoint" mapstructure:"endpoint"`

	// AccessKey for authentication.
	AccessKey string `json:"access-key" mapstructure:"access-key"`

	// SecretKey for authentication.
	SecretKey string `json:"-" mapstructure:"secret-key"`

	// Bucket is the bucket holding uploaded documents.
	Bucket string `json:"bucket" mapstructure:"bucket"`

	// UseSSL enables TLS for the connection.
	UseSSL bool `json:"use-ssl" mapstructure:"use-ssl"`
}

// NewOptions creates new Options with defaults.
func NewOptions() *Options {
	return &Options{
		Endpoint: "localhost:9000",
		Bucket:   "docchat-documents",
		UseSSL:   false,
	}
}

// AddFlags adds flags to the flagset.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Endpoint, options.Join(prefixes...)+"minio.endpoint", o.Endpoint, "MinIO server address (host:port).")
	fs.StringVar(&o.AccessKey, options.Join(prefixes...)+"minio.access-key", o.AccessKey, "MinIO access key.")
	fs.StringVar(&o.SecretKey, options.Join(prefixes...)+"minio.secret-key", o.SecretKey, "MinIO secret key (DEPRECATED: use MINIO_SECRET_KEY env var instead).")
	fs.StringVar(&o.Bucket, options.Join(prefixes...)+"minio.bucket", o.Bucket, "MinIO bucket for uploaded documents.")
	fs.BoolVar(&o.UseSSL, options.Join(prefixes...)+"minio.use-ssl", o.UseSSL, "Use TLS when connecting to MinIO.")
}

// Validate validates the options.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}

	// 如果 CLI 参数为空，从环境变量读取
	if o.SecretKey == "" {
		o.SecretKey = os.Getenv("MINIO_SECRET_KEY")
	}

	var errs []error
	if o.Endpoint == "" {
		errs = append(errs, fmt.Errorf("minio endpoint is required"))
	}
	if o.Bucket == "" {
		errs = append(errs, fmt.Errorf("minio bucket is required"))
	}
	return errs
}

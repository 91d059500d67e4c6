package sshtunnel

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// Config describes the bastion host a tunnel is opened through.
type Config struct {
	// Host is the bastion address.
	Host string `yaml:"host"`

	// Port is the bastion SSH port.
	// Default: 22
	Port int `yaml:"port"`

	User     string `yaml:"user"`
	Password string `yaml:"password"`

	// PrivateKeyPath, when set, adds public-key authentication.
	PrivateKeyPath string `yaml:"private_key_path"`

	// KnownHostsPath enables host key verification. Without it any host key is accepted.
	KnownHostsPath string `yaml:"known_hosts_path"`

	// KeepAlive is the interval between keepalive requests.
	// Default: 60s
	KeepAlive time.Duration `yaml:"keepalive"`

	// DialTimeout bounds the TCP connect and SSH handshake.
	// Default: 30s
	DialTimeout time.Duration `yaml:"dial_timeout"`
}

// Validate checks the required fields.
func (c Config) Validate() error {
	if c.Host == "" {
		return fmt.Errorf("ssh host is required")
	}
	if c.User == "" {
		return fmt.Errorf("ssh user is required")
	}
	if c.Password == "" && c.PrivateKeyPath == "" {
		return fmt.Errorf("ssh password or private key is required")
	}
	return nil
}

func (c Config) withDefaults() Config {
	if c.Port == 0 {
		c.Port = 22
	}
	if c.KeepAlive == 0 {
		c.KeepAlive = 60 * time.Second
	}
	if c.DialTimeout == 0 {
		c.DialTimeout = 30 * time.Second
	}
	return c
}

// Addr returns host:port of the bastion.
func (c Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

func (c Config) clientConfig() (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod
	if c.PrivateKeyPath != "" {
		key, err := os.ReadFile(c.PrivateKeyPath)
		if err != nil {
			return nil, fmt.Errorf("read private key: %w", err)
		}
		signer, err := ssh.ParsePrivateKey(key)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}
	if c.Password != "" {
		auth = append(auth, ssh.Password(c.Password))
	}

	hostKey := ssh.InsecureIgnoreHostKey()
	if c.KnownHostsPath != "" {
		cb, err := knownhosts.New(c.KnownHostsPath)
		if err != nil {
			return nil, fmt.Errorf("load known hosts: %w", err)
		}
		hostKey = cb
	}

	return &ssh.ClientConfig{
		User:            c.User,
		Auth:            auth,
		HostKeyCallback: hostKey,
		Timeout:         c.DialTimeout,
	}, nil
}

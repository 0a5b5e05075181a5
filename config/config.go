// Package config describes where the proxy connects to.
//
// A deployment is either a single server (Params carries the connection
// descriptor directly) or a named profile made of one master and a set of
// weighted slaves. Keys follow the historical configuration layout:
//
//	database:
//	  profile: main
//	  error_log_path: /var/log/app/errors_database.log
//	db_profiles:
//	  main:
//	    master:
//	      db_driver: mysql
//	      db_host: 10.0.0.1:3306
//	      db_user: app
//	      db_password: secret
//	      db_name: app
//	      db_init_commands: ["SET NAMES utf8mb4"]
//	    slaves:
//	      replica-1: {db_driver: mysql, db_host: 10.0.0.2:3306, weight: 2, ...}
//	      replica-2: {db_driver: mysql, db_host: 10.0.0.3:3306, weight: 1, ...}
package config

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrProfileNotFound = errors.New("database profile not found")
	ErrNoMaster        = errors.New("database profile has no master")
)

// Node is the connection descriptor of one database server.
type Node struct {
	Driver       string   `mapstructure:"db_driver" yaml:"db_driver"`
	Host         string   `mapstructure:"db_host" yaml:"db_host"`
	User         string   `mapstructure:"db_user" yaml:"db_user"`
	Password     string   `mapstructure:"db_password" yaml:"db_password"`
	Name         string   `mapstructure:"db_name" yaml:"db_name"`
	Weight       int      `mapstructure:"weight" yaml:"weight"`
	InitCommands []string `mapstructure:"db_init_commands" yaml:"db_init_commands"`
}

func (n Node) String() string {
	return fmt.Sprintf("%s://%s@%s/%s", n.Driver, n.User, n.Host, n.Name)
}

// Profile is a master/slaves deployment. Slaves are keyed by node id.
type Profile struct {
	Master Node            `mapstructure:"master"`
	Slaves map[string]Node `mapstructure:"slaves"`
}

// SlaveIDs returns the slave ids in a stable order.
func (p Profile) SlaveIDs() []string {
	ids := make([]string, 0, len(p.Slaves))
	for id := range p.Slaves {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (p Profile) Validate() error {
	if p.Master.Driver == "" || p.Master.Host == "" {
		return ErrNoMaster
	}
	return nil
}

// Params are the database parameters of the running application. When
// Profile is empty the embedded Node is used as a single server.
type Params struct {
	Node         `mapstructure:",squash"`
	Profile      string `mapstructure:"profile"`
	ErrorLogPath string `mapstructure:"error_log_path"`
}

// Source resolves database parameters and profiles.
type Source interface {
	Params() Params
	Profile(name string) (Profile, error)
}

// Static is a Source backed by in-memory values.
type Static struct {
	Database Params             `mapstructure:"database"`
	Profiles map[string]Profile `mapstructure:"db_profiles"`
}

var _ Source = (*Static)(nil)

func (s *Static) Params() Params {
	return s.Database
}

func (s *Static) Profile(name string) (Profile, error) {
	p, ok := s.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrProfileNotFound, name)
	}
	if err := p.Validate(); err != nil {
		return Profile{}, fmt.Errorf("profile %q: %w", name, err)
	}
	return p, nil
}

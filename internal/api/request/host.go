package request

import "github.com/cwarner/backhaul/internal/registry"

// CreateHost holds the request body for registering a host. Secret fields
// are routed to the vault by the registry and never echoed back.
type CreateHost struct {
	Name            string `json:"name" validate:"required,min=1,max=255"`
	Type            string `json:"type" validate:"omitempty,oneof=ssh"`
	Host            string `json:"host" validate:"required"`
	Port            int    `json:"port" validate:"omitempty,min=1,max=65535"`
	Username        string `json:"username" validate:"required"`
	AuthType        string `json:"auth_type" validate:"omitempty,oneof=password key"`
	ServiceURL      string `json:"service_url" validate:"omitempty,url"`
	DefaultInstance string `json:"default_instance"`
	Enabled         *bool  `json:"enabled"`

	Password string `json:"password"`
	KeyPath  string `json:"ssh_key_path"`
	APIKey   string `json:"api_key"`
}

func (r CreateHost) Input() registry.HostInput {
	return registry.HostInput{
		Name:            r.Name,
		Type:            r.Type,
		Host:            r.Host,
		Port:            r.Port,
		Username:        r.Username,
		AuthType:        r.AuthType,
		ServiceURL:      r.ServiceURL,
		DefaultInstance: r.DefaultInstance,
		Enabled:         r.Enabled,
		Password:        r.Password,
		KeyPath:         r.KeyPath,
		APIKey:          r.APIKey,
	}
}

// UpdateHost holds a partial host update; absent fields retain their prior
// values.
type UpdateHost struct {
	Name            *string `json:"name" validate:"omitempty,min=1,max=255"`
	Type            *string `json:"type" validate:"omitempty,oneof=ssh"`
	Host            *string `json:"host"`
	Port            *int    `json:"port" validate:"omitempty,min=1,max=65535"`
	Username        *string `json:"username"`
	AuthType        *string `json:"auth_type" validate:"omitempty,oneof=password key"`
	ServiceURL      *string `json:"service_url" validate:"omitempty,url"`
	DefaultInstance *string `json:"default_instance"`
	Enabled         *bool   `json:"enabled"`

	Password *string `json:"password"`
	KeyPath  *string `json:"ssh_key_path"`
	APIKey   *string `json:"api_key"`
}

func (r UpdateHost) Update() registry.HostUpdate {
	return registry.HostUpdate{
		Name:            r.Name,
		Type:            r.Type,
		Host:            r.Host,
		Port:            r.Port,
		Username:        r.Username,
		AuthType:        r.AuthType,
		ServiceURL:      r.ServiceURL,
		DefaultInstance: r.DefaultInstance,
		Enabled:         r.Enabled,
		Password:        r.Password,
		KeyPath:         r.KeyPath,
		APIKey:          r.APIKey,
	}
}

// ExecCommand holds an ad hoc remote command request.
type ExecCommand struct {
	Command string `json:"command" validate:"required,min=1"`
}

// Package dockerstat answers questions about local n8n containers through
// the Docker API: which instances exist, what state they are in, and basic
// lifecycle control around restores.
package dockerstat

import (
	"context"
	"fmt"
	"strings"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/rs/zerolog"
)

// Instance is one container matching the instance name filter.
type Instance struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Image  string `json:"image"`
	State  string `json:"state"`
	Status string `json:"status"`
}

// Status is the inspected state of one container.
type Status struct {
	Name      string `json:"name"`
	Image     string `json:"image"`
	State     string `json:"state"`
	Running   bool   `json:"running"`
	StartedAt string `json:"started_at"`
}

// dockerAPI is the slice of the Docker client this package uses.
type dockerAPI interface {
	Ping(ctx context.Context) (types.Ping, error)
	ContainerList(ctx context.Context, options container.ListOptions) ([]container.Summary, error)
	ContainerInspect(ctx context.Context, containerID string) (container.InspectResponse, error)
	ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error
	ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error
	ContainerRestart(ctx context.Context, containerID string, options container.StopOptions) error
	Close() error
}

type Service struct {
	nameFilter string
	logger     zerolog.Logger
	newClient  func() (dockerAPI, error)
}

// New creates a Service that talks to the local Docker daemon. nameFilter
// restricts listings to containers whose name contains it.
func New(nameFilter string, logger zerolog.Logger) *Service {
	return &Service{
		nameFilter: nameFilter,
		logger:     logger.With().Str("component", "dockerstat").Logger(),
		newClient: func() (dockerAPI, error) {
			return client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		},
	}
}

// Available reports whether a Docker daemon is reachable.
func (s *Service) Available(ctx context.Context) bool {
	cli, err := s.newClient()
	if err != nil {
		return false
	}
	defer cli.Close()
	_, err = cli.Ping(ctx)
	return err == nil
}

// ListInstances returns all containers, running or not, whose name matches
// the instance filter.
func (s *Service) ListInstances(ctx context.Context) ([]Instance, error) {
	cli, err := s.newClient()
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}
	defer cli.Close()

	containers, err := cli.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("name", s.nameFilter)),
	})
	if err != nil {
		return nil, fmt.Errorf("list containers: %w", err)
	}

	instances := make([]Instance, 0, len(containers))
	for _, c := range containers {
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		instances = append(instances, Instance{
			ID:     c.ID,
			Name:   name,
			Image:  c.Image,
			State:  c.State,
			Status: c.Status,
		})
	}
	return instances, nil
}

// InstanceStatus inspects one container by name or id.
func (s *Service) InstanceStatus(ctx context.Context, name string) (Status, error) {
	cli, err := s.newClient()
	if err != nil {
		return Status{}, fmt.Errorf("create docker client: %w", err)
	}
	defer cli.Close()

	info, err := cli.ContainerInspect(ctx, name)
	if err != nil {
		return Status{}, fmt.Errorf("inspect container %s: %w", name, err)
	}

	st := Status{Name: strings.TrimPrefix(info.Name, "/")}
	if info.Config != nil {
		st.Image = info.Config.Image
	}
	if info.State != nil {
		st.State = info.State.Status
		st.Running = info.State.Running
		st.StartedAt = info.State.StartedAt
	}
	return st, nil
}

// Start starts a stopped container.
func (s *Service) Start(ctx context.Context, name string) error {
	return s.lifecycle(ctx, name, "start", func(cli dockerAPI) error {
		return cli.ContainerStart(ctx, name, container.StartOptions{})
	})
}

// Stop stops a running container with the daemon's default grace period.
func (s *Service) Stop(ctx context.Context, name string) error {
	return s.lifecycle(ctx, name, "stop", func(cli dockerAPI) error {
		return cli.ContainerStop(ctx, name, container.StopOptions{})
	})
}

// Restart restarts a container.
func (s *Service) Restart(ctx context.Context, name string) error {
	return s.lifecycle(ctx, name, "restart", func(cli dockerAPI) error {
		return cli.ContainerRestart(ctx, name, container.StopOptions{})
	})
}

func (s *Service) lifecycle(ctx context.Context, name, verb string, op func(dockerAPI) error) error {
	cli, err := s.newClient()
	if err != nil {
		return fmt.Errorf("create docker client: %w", err)
	}
	defer cli.Close()

	if err := op(cli); err != nil {
		return fmt.Errorf("%s container %s: %w", verb, name, err)
	}
	s.logger.Info().Str("container", name).Str("action", verb).Msg("container lifecycle action")
	return nil
}

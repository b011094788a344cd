// Package staff serves the read-only staff directory used for booking ownership.
package staff

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"travelplan_backend/internal/bookings/domain"

	"golang.org/x/sync/singleflight"
	"gopkg.in/yaml.v3"
)

// Directory lists staff members.
type Directory interface {
	ListStaff(ctx context.Context) ([]domain.StaffMember, error)
}

// FileDirectory reads staff from a YAML (or JSON) file and reloads it when the
// file's modification time changes. Concurrent reloads are collapsed.
type FileDirectory struct {
	path string

	mu      sync.RWMutex
	members []domain.StaffMember
	modTime time.Time

	group singleflight.Group
}

// NewFileDirectory loads path once and returns the directory.
func NewFileDirectory(path string) (*FileDirectory, error) {
	d := &FileDirectory{path: path}
	if _, err := d.reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// ListStaff returns a copy of the current staff list.
func (d *FileDirectory) ListStaff(_ context.Context) ([]domain.StaffMember, error) {
	info, err := os.Stat(d.path)
	if err != nil {
		return nil, fmt.Errorf("stat staff file: %w", err)
	}

	d.mu.RLock()
	fresh := info.ModTime().Equal(d.modTime)
	members := d.members
	d.mu.RUnlock()
	if fresh {
		return cloneMembers(members), nil
	}

	v, err, _ := d.group.Do("reload", func() (interface{}, error) {
		return d.reload()
	})
	if err != nil {
		return nil, err
	}
	return cloneMembers(v.([]domain.StaffMember)), nil
}

func (d *FileDirectory) reload() ([]domain.StaffMember, error) {
	info, err := os.Stat(d.path)
	if err != nil {
		return nil, fmt.Errorf("stat staff file: %w", err)
	}
	data, err := os.ReadFile(d.path)
	if err != nil {
		return nil, fmt.Errorf("read staff file: %w", err)
	}
	members, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", d.path, err)
	}

	d.mu.Lock()
	d.members = members
	d.modTime = info.ModTime()
	d.mu.Unlock()
	return members, nil
}

type staffFile struct {
	Staff []domain.StaffMember `yaml:"staff"`
}

// Parse decodes a staff document. It accepts either a top-level list or a
// mapping with a "staff" list; JSON input works as well.
func Parse(data []byte) ([]domain.StaffMember, error) {
	var members []domain.StaffMember
	if err := yaml.Unmarshal(data, &members); err != nil {
		var doc staffFile
		if err2 := yaml.Unmarshal(data, &doc); err2 != nil {
			return nil, err2
		}
		members = doc.Staff
	}
	return normalize(members)
}

func normalize(members []domain.StaffMember) ([]domain.StaffMember, error) {
	seen := make(map[string]bool, len(members))
	out := make([]domain.StaffMember, 0, len(members))
	for i, m := range members {
		m.ID = strings.TrimSpace(m.ID)
		m.Name = strings.TrimSpace(m.Name)
		if m.ID == "" {
			return nil, fmt.Errorf("staff[%d]: id is required", i)
		}
		if m.Name == "" {
			return nil, fmt.Errorf("staff[%d]: name is required", i)
		}
		if seen[m.ID] {
			return nil, fmt.Errorf("staff[%d]: duplicate id %q", i, m.ID)
		}
		seen[m.ID] = true
		m.Usernames = nonEmpty(m.Usernames)
		m.Destinations = nonEmpty(m.Destinations)
		m.Languages = nonEmpty(m.Languages)
		out = append(out, m)
	}
	return out, nil
}

func nonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func cloneMembers(members []domain.StaffMember) []domain.StaffMember {
	out := make([]domain.StaffMember, len(members))
	for i, m := range members {
		m.Usernames = append([]string(nil), m.Usernames...)
		m.Destinations = append([]string(nil), m.Destinations...)
		m.Languages = append([]string(nil), m.Languages...)
		out[i] = m
	}
	return out
}

// StaticDirectory is a fixed in-memory staff list.
type StaticDirectory []domain.StaffMember

// ListStaff returns a copy of the list.
func (s StaticDirectory) ListStaff(_ context.Context) ([]domain.StaffMember, error) {
	return cloneMembers(s), nil
}

// FindByID returns the staff member with id.
func FindByID(members []domain.StaffMember, id string) (domain.StaffMember, bool) {
	for _, m := range members {
		if m.ID == id {
			return m, true
		}
	}
	return domain.StaffMember{}, false
}

// FindByUsername returns the staff member owning the login name.
func FindByUsername(members []domain.StaffMember, username string) (domain.StaffMember, bool) {
	for _, m := range members {
		if m.HasUsername(username) {
			return m, true
		}
	}
	return domain.StaffMember{}, false
}

package staff

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const staffYAML = `
staff:
  - id: staff_minh
    name: Minh
    active: true
    email: minh@example.com
    usernames: [minh, " minh.tran "]
    destinations: [Vietnam, Cambodia]
    languages: [English, Vietnamese]
  - id: staff_lan
    name: Lan
    active: false
    destinations: [Thailand]
`

func TestParseYAMLMapping(t *testing.T) {
	members, err := Parse([]byte(staffYAML))
	require.NoError(t, err)
	require.Len(t, members, 2)

	assert.Equal(t, "staff_minh", members[0].ID)
	assert.True(t, members[0].Active)
	assert.Equal(t, []string{"minh", "minh.tran"}, members[0].Usernames)
	assert.Equal(t, []string{"Vietnam", "Cambodia"}, members[0].Destinations)
	assert.False(t, members[1].Active)
	assert.Empty(t, members[1].Languages)
}

func TestParseJSONList(t *testing.T) {
	members, err := Parse([]byte(`[{"id":"s1","name":"Hana","active":true,"languages":["Japanese"]}]`))
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "Hana", members[0].Name)
	assert.Equal(t, []string{"Japanese"}, members[0].Languages)
}

func TestParseRejectsBadEntries(t *testing.T) {
	_, err := Parse([]byte(`[{"id":"","name":"x"}]`))
	assert.Error(t, err)
	_, err = Parse([]byte(`[{"id":"a","name":"x"},{"id":"a","name":"y"}]`))
	assert.Error(t, err)
}

func TestFileDirectoryReloadsOnChange(t *testing.T) {
	path := filepath.Join(t.TempDir(), "staff.yaml")
	require.NoError(t, os.WriteFile(path, []byte(staffYAML), 0o644))

	dir, err := NewFileDirectory(path)
	require.NoError(t, err)

	members, err := dir.ListStaff(context.Background())
	require.NoError(t, err)
	assert.Len(t, members, 2)

	require.NoError(t, os.WriteFile(path, []byte(`[{"id":"s9","name":"Only","active":true}]`), 0o644))
	future := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, future, future))

	members, err = dir.ListStaff(context.Background())
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "s9", members[0].ID)
}

func TestListStaffReturnsCopies(t *testing.T) {
	dir := StaticDirectory{{ID: "s1", Name: "A", Languages: []string{"English"}}}
	first, _ := dir.ListStaff(context.Background())
	first[0].Languages[0] = "mutated"
	second, _ := dir.ListStaff(context.Background())
	assert.Equal(t, "English", second[0].Languages[0])
}

func TestFindHelpers(t *testing.T) {
	members, err := Parse([]byte(staffYAML))
	require.NoError(t, err)

	m, ok := FindByUsername(members, "minh.tran")
	assert.True(t, ok)
	assert.Equal(t, "staff_minh", m.ID)

	_, ok = FindByUsername(members, "")
	assert.False(t, ok)

	m, ok = FindByID(members, "staff_lan")
	assert.True(t, ok)
	assert.Equal(t, "Lan", m.Name)
}

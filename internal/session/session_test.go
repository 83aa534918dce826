package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthenticate(t *testing.T) {
	s := &Session{}
	assert.False(t, s.Authenticated)

	s.Authenticate(7, "mperez", RoleAsesor)

	assert.True(t, s.Authenticated)
	assert.Equal(t, 7, s.UserID)
	assert.Equal(t, "mperez", s.Username)
	assert.Equal(t, RoleAsesor, s.Role)
}

func TestHasRoleCaseInsensitive(t *testing.T) {
	s := &Session{Role: "Asesor"}

	assert.True(t, s.HasRole(RoleAsesor))
	assert.True(t, s.HasRole("asesor"))
	assert.True(t, s.HasRole(RoleAdmin, RoleAsesor))
	assert.False(t, s.HasRole(RoleAlumno))
	assert.False(t, s.HasRole(RoleAdmin))
}

func TestHasRoleWholeStringOnly(t *testing.T) {
	// No prefix matching and no hierarchy between roles
	s := &Session{Role: "ASESOR_SENIOR"}
	assert.False(t, s.HasRole(RoleAsesor))
}

func TestAuthorized(t *testing.T) {
	authed := &Session{Authenticated: true, Role: RoleAlumno}

	assert.False(t, Authorized(nil, nil))
	assert.False(t, Authorized(&Session{}, nil))
	assert.False(t, Authorized(&Session{Role: RoleAdmin}, []string{RoleAdmin}))

	assert.True(t, Authorized(authed, nil))
	assert.True(t, Authorized(authed, []string{RoleAlumno}))
	assert.False(t, Authorized(authed, []string{RoleAsesor, RoleAdmin}))
}

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()

	type conn struct{ id int }
	c1 := &conn{1}
	c2 := &conn{2}

	s1 := r.Register(c1)
	require.NotNil(t, s1)
	assert.False(t, s1.Authenticated)
	assert.Equal(t, 1, r.Count())

	// Registering again returns the same session
	again := r.Register(c1)
	assert.Same(t, s1, again)
	assert.Equal(t, 1, r.Count())

	s2 := r.Register(c2)
	assert.NotSame(t, s1, s2)
	assert.Equal(t, 2, r.Count())

	got, ok := r.Lookup(c1)
	require.True(t, ok)
	assert.Same(t, s1, got)

	r.Remove(c1)
	_, ok = r.Lookup(c1)
	assert.False(t, ok)
	assert.Equal(t, 1, r.Count())

	// Removing twice is harmless
	r.Remove(c1)
	assert.Equal(t, 1, r.Count())
}

func TestRegistrySessionIsolation(t *testing.T) {
	r := NewRegistry()

	type conn struct{ id int }
	c1 := &conn{1}
	c2 := &conn{2}

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		s := r.Register(c1)
		s.Authenticate(1, "alumno1", RoleAlumno)
	}()
	go func() {
		defer wg.Done()
		s := r.Register(c2)
		s.Authenticate(2, "asesor1", RoleAsesor)
	}()
	wg.Wait()

	s1, ok := r.Lookup(c1)
	require.True(t, ok)
	s2, ok := r.Lookup(c2)
	require.True(t, ok)

	assert.Equal(t, 1, s1.UserID)
	assert.Equal(t, RoleAlumno, s1.Role)
	assert.Equal(t, 2, s2.UserID)
	assert.Equal(t, RoleAsesor, s2.Role)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			c := &struct{ id int }{n}
			r.Register(c)
			r.Lookup(c)
			r.Remove(c)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 0, r.Count())
}

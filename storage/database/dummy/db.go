// Package dummydb provides in-memory repositories for tests and local hacking.
package dummydb

import (
	"strings"
	"sync"

	"github.com/trezcool/academia/core/audit"
	"github.com/trezcool/academia/core/course"
	"github.com/trezcool/academia/core/enrollment"
	"github.com/trezcool/academia/core/resource"
	"github.com/trezcool/academia/core/user"
)

type (
	DB struct {
		user       *userTable
		course     *courseTable
		enrollment *enrollmentTable
		audit      *auditTable
		resource   *resourceTable
	}

	userTable struct {
		sync.RWMutex
		table map[string]*user.User
	}

	courseTable struct {
		sync.RWMutex
		table map[string]*course.Course
	}

	enrollmentTable struct {
		sync.RWMutex
		table map[string]*enrollment.Enrollment
	}

	auditTable struct {
		sync.RWMutex
		table []audit.Entry
	}

	resourceTable struct {
		sync.RWMutex
		table map[string]*resource.Resource
	}
)

func Open() (*DB, error) {
	db := &DB{
		user:       &userTable{table: make(map[string]*user.User)},
		course:     &courseTable{table: make(map[string]*course.Course)},
		enrollment: &enrollmentTable{table: make(map[string]*enrollment.Enrollment)},
		audit:      &auditTable{},
		resource:   &resourceTable{table: make(map[string]*resource.Resource)},
	}
	return db, nil
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

package memory

import (
	"database/sql"
	"errors"
)

// DB exposes the internal *sql.DB for test helpers in memory_test.
// This file only compiles during `go test`.
func (s *Store) DB() *sql.DB {
	return s.db
}

// ErrInjected is the fault returned by FailWrites and FailReads.
var ErrInjected = errors.New("injected disk failure")

// FailWrites makes every subsequent write fail until the returned func runs.
func (s *Store) FailWrites() (restore func()) {
	prev := s.hooks
	s.hooks.exec = func(execer, string, ...any) (sql.Result, error) {
		return nil, ErrInjected
	}
	return func() { s.hooks = prev }
}

// FailReads makes every subsequent hooked query fail until the returned func runs.
func (s *Store) FailReads() (restore func()) {
	prev := s.hooks
	s.hooks.queryIt = func(queryer, string, ...any) (rowScanner, error) {
		return nil, ErrInjected
	}
	return func() { s.hooks = prev }
}

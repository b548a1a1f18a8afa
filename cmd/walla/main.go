package main

import (
	"log"

	"github.com/ivanoskov/walla/internal/config"
	"github.com/ivanoskov/walla/internal/groups"
	"github.com/ivanoskov/walla/internal/identity"
	"github.com/ivanoskov/walla/internal/session"
	"github.com/ivanoskov/walla/internal/storage"
)

// app — собранные зависимости клиента: держатель сессии и сервис групп
// поверх одного подключения к Supabase и локального хранилища
type app struct {
	session *session.Holder
	groups  *groups.Service
	close   func()
}

func buildApp(memory bool) (*app, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	var store storage.Store
	closeFn := func() {}
	if memory {
		store = storage.NewMemoryStore()
	} else {
		s, err := storage.Open(cfg.StorePath)
		if err != nil {
			return nil, err
		}
		store = s
		closeFn = func() { s.Close() }
	}

	svc, err := identity.NewSupabaseService(cfg.SupabaseURL, cfg.SupabaseKey)
	if err != nil {
		closeFn()
		return nil, err
	}

	repo, err := groups.NewSupabaseRepository(cfg.SupabaseURL, cfg.SupabaseKey)
	if err != nil {
		closeFn()
		return nil, err
	}

	return &app{
		session: session.NewHolder(svc, store),
		groups:  groups.NewService(repo),
		close:   closeFn,
	}, nil
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.Fatal(err)
	}
}

package chatsync

import (
	"errors"
	"testing"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry()
	adapter := newFakeAdapter("discord")
	if err := reg.Register(adapter); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	got, err := reg.Get("discord")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got != adapter {
		t.Fatalf("Get() returned a different adapter")
	}
}

func TestRegistry_Get_Unknown(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Get("slack")
	var notSupported *ProviderNotSupportedError
	if !errors.As(err, &notSupported) {
		t.Fatalf("Get(slack) error = %v, want ProviderNotSupportedError", err)
	}
}

func TestRegistry_Register_Duplicate(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(newFakeAdapter("discord")); err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	if err := reg.Register(newFakeAdapter("discord")); err == nil {
		t.Fatal("expected error registering a duplicate provider")
	}
}

func TestRegistry_Register_Nil(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Register(nil); err == nil {
		t.Fatal("expected error registering a nil adapter")
	}
}

func TestRegistry_MustRegister_Panics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected MustRegister to panic on nil adapter")
		}
	}()
	NewRegistry().MustRegister(nil)
}

func TestRegistry_Providers(t *testing.T) {
	reg := NewRegistry()
	reg.MustRegister(newFakeAdapter("discord"))
	providers := reg.Providers()
	if len(providers) != 1 || providers[0] != "discord" {
		t.Fatalf("Providers() = %v, want [discord]", providers)
	}
}

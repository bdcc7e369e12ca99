package source

import (
	"context"
	"testing"
)

type stubAdapter struct {
	name Name
}

func (s *stubAdapter) Name() Name         { return s.name }
func (s *stubAdapter) Priority() int      { return Priority(s.name) }
func (s *stubAdapter) RequiresAuth() bool { return false }

type stubISRC struct{ stubAdapter }

func (s *stubISRC) LookupByISRC(ctx context.Context, isrc string) (*PartialRecord, error) {
	return &PartialRecord{}, nil
}

type stubNameOnly struct{ stubAdapter }

func (s *stubNameOnly) LookupByName(ctx context.Context, artist, title string) (*PartialRecord, error) {
	return &PartialRecord{}, nil
}

func TestRegistryPriorityOrder(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubISRC{stubAdapter{name: NameDeezer}})
	r.Register(&stubISRC{stubAdapter{name: NameACRCloud}})
	r.Register(&stubISRC{stubAdapter{name: NameSpotify}})

	all := r.All()
	want := []Name{NameACRCloud, NameSpotify, NameDeezer}
	if len(all) != len(want) {
		t.Fatalf("expected %d adapters, got %d", len(want), len(all))
	}
	for i, n := range want {
		if all[i].Name() != n {
			t.Errorf("position %d: expected %s, got %s", i, n, all[i].Name())
		}
	}
}

func TestRegistryCapabilitySplit(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubISRC{stubAdapter{name: NameSpotify}})
	r.Register(&stubNameOnly{stubAdapter{name: NameLastFM}})
	r.Register(&stubNameOnly{stubAdapter{name: NameOracle}})

	isrc := r.ISRCCapable()
	if len(isrc) != 1 || isrc[0].Name() != NameSpotify {
		t.Errorf("unexpected ISRC-capable set: %v", names(isrc))
	}

	nameOnly := r.NameOnly()
	if len(nameOnly) != 2 || nameOnly[0].Name() != NameLastFM || nameOnly[1].Name() != NameOracle {
		t.Errorf("unexpected name-only set: %v", names(nameOnly))
	}
}

func TestRegistryGet(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubISRC{stubAdapter{name: NameDeezer}})

	if a := r.Get(NameDeezer); a == nil || a.Name() != NameDeezer {
		t.Error("registered adapter not found")
	}
	if a := r.Get(NameSpotify); a != nil {
		t.Errorf("expected nil for unregistered source, got %s", a.Name())
	}
}

func names(adapters []Adapter) []Name {
	out := make([]Name, 0, len(adapters))
	for _, a := range adapters {
		out = append(out, a.Name())
	}
	return out
}

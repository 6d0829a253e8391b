package activity

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/goliatone/go-bitstate"
	"github.com/google/uuid"
)

func TestSinkEmitsRegisterChangedOnCommit(t *testing.T) {
	capture := &CaptureHook{}
	catalog := bitstate.MustCatalog("power", "low", "mid", "high")
	sink := NewSink(NewEmitter(Hooks{capture}, Config{Enabled: true}), SinkConfig{
		ObjectID: "fan-1",
		TenantID: "tenant",
		Catalog:  catalog,
	})
	live := bitstate.NewLive(bitstate.WithSink(sink))
	sink.Bind(live)
	if err := live.ConfigureRadioGroup(1, 3); err != nil {
		t.Fatalf("configure radio: %v", err)
	}

	live.Set(1)
	live.Set(3)

	if len(capture.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(capture.Events))
	}
	last := capture.Events[1]
	if last.Verb != VerbRegisterChanged || last.ObjectID != "fan-1" || last.TenantID != "tenant" {
		t.Fatalf("unexpected event %+v", last)
	}
	if last.Channel != DefaultChannel {
		t.Fatalf("expected default channel, got %q", last.Channel)
	}
	if !reflect.DeepEqual(last.Metadata["changed_items"], []string{"low", "high"}) {
		t.Fatalf("unexpected changed_items %v", last.Metadata["changed_items"])
	}
	if last.Metadata["serial"] != uint64(2) {
		t.Fatalf("expected serial 2, got %v", last.Metadata["serial"])
	}
}

func TestSinkDefaultsObjectIDToUUID(t *testing.T) {
	sink := NewSink(NewEmitter(nil, Config{Enabled: true}), SinkConfig{})
	if _, err := uuid.Parse(sink.ObjectID()); err != nil {
		t.Fatalf("expected uuid object id, got %q", sink.ObjectID())
	}
}

func TestSinkSkipsDoneCommits(t *testing.T) {
	capture := &CaptureHook{}
	sink := NewSink(NewEmitter(Hooks{capture}, Config{Enabled: true}), SinkConfig{})
	live := bitstate.NewLive(
		bitstate.WithSink(sink),
		bitstate.WithValidator(bitstate.ValidatorFunc(func(_ bitstate.PriorView, next *bitstate.Proposal) bool {
			if next.Get(0) {
				next.MarkDone()
			}
			return true
		})),
	)

	live.Set(0)
	live.Set(1)

	if len(capture.Events) != 1 {
		t.Fatalf("expected only the second commit to emit, got %d", len(capture.Events))
	}
}

func TestSinkObserverCountAndDetach(t *testing.T) {
	capture := &CaptureHook{}
	sink := NewSink(NewEmitter(Hooks{capture, &CaptureHook{}}, Config{Enabled: true}), SinkConfig{})
	live := bitstate.NewLive(bitstate.WithSink(sink))

	if live.ObserverCount() != 2 {
		t.Fatalf("expected 2 observers, got %d", live.ObserverCount())
	}
	live.Set(0)
	sink.Detach()
	sink.Pump(bitstate.Bit(4))
	if sink.ObserverCount() != 0 {
		t.Fatalf("expected no observers after detach")
	}
	if len(capture.Events) != 1 {
		t.Fatalf("expected detached sink to stay quiet, got %d events", len(capture.Events))
	}

	live.Detach()
	if live.Sink() != nil || live.ObserverCount() != 0 {
		t.Fatalf("expected live register to drop its sink")
	}
}

func TestSinkReportsHookErrors(t *testing.T) {
	boom := errors.New("boom")
	var reported error
	sink := NewSink(NewEmitter(Hooks{&CaptureHook{Err: boom}}, Config{Enabled: true}), SinkConfig{
		OnError: func(err error) { reported = err },
	})
	sink.Pump(bitstate.Bit(0))
	if !errors.Is(reported, boom) {
		t.Fatalf("expected hook error reported, got %v", reported)
	}
}

func TestSinkPassesContext(t *testing.T) {
	type key struct{}
	var seen any
	hook := HookFunc(func(ctx context.Context, _ Event) error {
		seen = ctx.Value(key{})
		return nil
	})
	sink := NewSink(NewEmitter(Hooks{hook}, Config{Enabled: true}), SinkConfig{
		Context: context.WithValue(context.Background(), key{}, "request"),
	})
	sink.Pump(bitstate.Bit(2))
	if seen != "request" {
		t.Fatalf("expected configured context, got %v", seen)
	}
}

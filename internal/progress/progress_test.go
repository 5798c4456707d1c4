package progress

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/market-intel/internal/model"
)

func ev(msg string) model.ProgressEvent {
	return model.ProgressEvent{Stage: model.StageDiscovery, Message: msg}
}

func TestEmitter_DropsWithoutSubscriber(t *testing.T) {
	e := New()
	e.Emit(ev("lost"))

	var got []string
	e.Subscribe(func(p model.ProgressEvent) { got = append(got, p.Message) })
	e.Emit(ev("one"))
	e.Emit(ev("two"))
	assert.Equal(t, []string{"one", "two"}, got)
}

func TestEmitter_Close(t *testing.T) {
	e := New()
	var n int
	e.Subscribe(func(model.ProgressEvent) { n++ })
	e.Emit(ev("a"))
	e.Close()
	e.Emit(ev("b"))
	e.Subscribe(func(model.ProgressEvent) { n += 100 })
	e.Emit(ev("c"))
	assert.Equal(t, 1, n)
}

func TestEmitter_Nil(t *testing.T) {
	var e *Emitter
	assert.NotPanics(t, func() {
		e.Subscribe(func(model.ProgressEvent) {})
		e.Emit(ev("x"))
		e.Close()
	})
}

func TestEmitter_ConcurrentEmitSerialized(t *testing.T) {
	e := New()
	var count int // guarded by the emitter
	e.Subscribe(func(model.ProgressEvent) { count++ })

	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e.Emit(ev("x"))
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, count)
}

func TestSink(t *testing.T) {
	s := Channel(2)
	e := New()
	e.Subscribe(s.Send)

	e.Emit(ev("1").WithCount(1, 3))
	e.Emit(ev("2"))
	e.Emit(ev("3"))
	assert.EqualValues(t, 1, s.Dropped())

	e.Close()
	s.Close()
	s.Close()
	s.Send(ev("after"))

	var got []model.ProgressEvent
	for p := range s.C() {
		got = append(got, p)
	}
	require.Len(t, got, 2)
	assert.Equal(t, "1", got[0].Message)
	require.NotNil(t, got[0].Progress)
	assert.Equal(t, 1, *got[0].Progress)
	assert.Equal(t, 3, *got[0].Total)
}

package rules

import (
	"sync"

	"github.com/am6737/zenset/api"
	"github.com/am6737/zenset/transport/packet"
)

// fakeEngine answers every lookup with fixed values and records the calls.
type fakeEngine struct {
	sync.Mutex
	sets     map[string]api.SetID
	member   bool
	counters api.Counters
	testErr  error

	resolves     int
	releases     int
	tests        int
	counterReads int
	lastKey      packet.Key
	lastOpt      api.QueryOptions
}

func newFakeEngine(names ...string) *fakeEngine {
	e := &fakeEngine{sets: map[string]api.SetID{}}
	for i, n := range names {
		e.sets[n] = api.SetID(i)
	}
	return e
}

func (e *fakeEngine) Resolve(name string) (api.SetID, error) {
	e.Lock()
	defer e.Unlock()
	id, ok := e.sets[name]
	if !ok {
		return api.InvalidSetID, api.ErrSetNotFound
	}
	e.resolves++
	return id, nil
}

func (e *fakeEngine) Release(id api.SetID) {
	e.Lock()
	defer e.Unlock()
	e.releases++
}

func (e *fakeEngine) Name(id api.SetID) (string, error) {
	e.Lock()
	defer e.Unlock()
	for n, v := range e.sets {
		if v == id {
			return n, nil
		}
	}
	return "", api.ErrSetNotFound
}

func (e *fakeEngine) Test(id api.SetID, key packet.Key, opt *api.QueryOptions) (bool, error) {
	e.Lock()
	defer e.Unlock()
	e.tests++
	e.lastKey = key
	e.lastOpt = *opt
	return e.member, e.testErr
}

func (e *fakeEngine) Counters(id api.SetID, key packet.Key, opt *api.QueryOptions) (api.Counters, error) {
	e.Lock()
	defer e.Unlock()
	e.counterReads++
	return e.counters, nil
}

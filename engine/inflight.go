// Copyright 2025 iskng
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package engine

import (
	"sync"
	"time"

	"github.com/surrealdb/surrealdb.go/pkg/models"
)

// DefaultCooldownWindow dampens rediscovery churn: identifiers that
// just completed or failed stay in the skip set this long.
const DefaultCooldownWindow = 30 * time.Second

type cooldownEntry struct {
	id    models.RecordID
	until time.Time
}

// InFlightSet tracks repository identifiers claimed by workers so the
// discovery loop never emits an identifier twice concurrently. It
// also remembers recently finished identifiers for a cooldown window
// to dampen churn from update timestamps re-qualifying a row.
type InFlightSet struct {
	mu       sync.Mutex
	active   map[string]models.RecordID
	cooldown map[string]cooldownEntry
	window   time.Duration
}

// NewInFlightSet creates a set with the given cooldown window.
// A non-positive window disables cooldown tracking.
func NewInFlightSet(window time.Duration) *InFlightSet {
	return &InFlightSet{
		active:   make(map[string]models.RecordID),
		cooldown: make(map[string]cooldownEntry),
		window:   window,
	}
}

// TryClaim claims an identifier for processing. It fails when the
// identifier is already claimed or finished within the cooldown
// window.
func (s *InFlightSet) TryClaim(id models.RecordID) bool {
	key := id.String()
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[key]; ok {
		return false
	}
	if entry, ok := s.cooldown[key]; ok {
		if now.Before(entry.until) {
			return false
		}
		delete(s.cooldown, key)
	}
	s.active[key] = id
	return true
}

// Release removes a claim with no cooldown; the identifier is
// immediately eligible for rediscovery (circuit-open deferrals).
func (s *InFlightSet) Release(id models.RecordID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, id.String())
}

// Finish removes a claim and starts the cooldown window, for both
// successful writebacks and terminal failures.
func (s *InFlightSet) Finish(id models.RecordID) {
	key := id.String()

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.active, key)
	if s.window > 0 {
		s.cooldown[key] = cooldownEntry{id: id, until: time.Now().Add(s.window)}
	}
}

// Skip returns the identifiers the discovery query must exclude:
// everything claimed plus everything inside the cooldown window.
func (s *InFlightSet) Skip() []models.RecordID {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]models.RecordID, 0, len(s.active)+len(s.cooldown))
	for _, id := range s.active {
		out = append(out, id)
	}
	for key, entry := range s.cooldown {
		if now.Before(entry.until) {
			out = append(out, entry.id)
			continue
		}
		delete(s.cooldown, key)
	}
	return out
}

// Len returns the number of active claims.
func (s *InFlightSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

package views

import (
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"dobro-cards-bot/internal/domain"
)

// memViewRepo повторяет семантику атомарного инкремента хранилища.
type memViewRepo struct {
	mu     sync.Mutex
	counts map[int64]map[string]int
}

func newMemViewRepo() *memViewRepo {
	return &memViewRepo{counts: map[int64]map[string]int{}}
}

func (m *memViewRepo) TrackView(userID int64, cardID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts[userID] == nil {
		m.counts[userID] = map[string]int{}
	}
	m.counts[userID][cardID]++
	return m.counts[userID][cardID], nil
}

func (m *memViewRepo) CardViewCount(userID int64, cardID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[userID][cardID], nil
}

func (m *memViewRepo) UserTotalViews(userID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, count := range m.counts[userID] {
		total += count
	}
	return total, nil
}

func (m *memViewRepo) ViewedCardIDs(userID int64) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for cardID := range m.counts[userID] {
		ids = append(ids, cardID)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memViewRepo) TopViewers(int) ([]domain.TopViewer, error) { return nil, nil }

type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
	gets int
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}}
}

func (c *memCache) Once(string, time.Duration, func() error) error { return nil }

func (c *memCache) Set(key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	c.sets++
	return nil
}

func (c *memCache) Get(key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	raw, ok := c.data[key]
	if !ok {
		return nil, errors.New("нет значения")
	}
	return raw, nil
}

func (c *memCache) Del(key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.data, key)
	return nil
}

func TestRecordViewIncrements(t *testing.T) {
	svc := NewService(newMemViewRepo(), nil, time.Minute)
	for want := 1; want <= 5; want++ {
		count, err := svc.RecordView(42, "card-1")
		if err != nil {
			t.Fatalf("не ожидали ошибку: %v", err)
		}
		if count != want {
			t.Fatalf("ожидали счётчик %d, получили %d", want, count)
		}
	}
}

func TestRecordViewConcurrent(t *testing.T) {
	svc := NewService(newMemViewRepo(), nil, time.Minute)
	const workers = 50

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.RecordView(42, "card-1"); err != nil {
				t.Errorf("не ожидали ошибку: %v", err)
			}
		}()
	}
	wg.Wait()

	count, err := svc.CardViewCount(42, "card-1")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if count != workers {
		t.Fatalf("параллельные просмотры потерялись: ожидали %d, получили %d", workers, count)
	}
}

func TestTotalsAndViewedSet(t *testing.T) {
	svc := NewService(newMemViewRepo(), nil, time.Minute)

	for _, cardID := range []string{"a", "b", "c", "a"} {
		if _, err := svc.RecordView(42, cardID); err != nil {
			t.Fatalf("не ожидали ошибку: %v", err)
		}
	}

	total, err := svc.TotalViews(42)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if total != 4 {
		t.Fatalf("повторный просмотр тоже считается: ожидали 4, получили %d", total)
	}

	ids, err := svc.ViewedCardIDs(42)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(ids) != 3 {
		t.Fatalf("набор просмотренных не содержит дублей: ожидали 3, получили %d", len(ids))
	}
}

func TestViewedCardIDsUsesCache(t *testing.T) {
	cache := newMemCache()
	svc := NewService(newMemViewRepo(), cache, time.Minute)

	if _, err := svc.RecordView(42, "a"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if _, err := svc.ViewedCardIDs(42); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if cache.sets != 1 {
		t.Fatalf("первая выборка должна наполнить кеш")
	}

	ids, err := svc.ViewedCardIDs(42)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(ids) != 1 || ids[0] != "a" {
		t.Fatalf("из кеша ожидали [a], получили %v", ids)
	}

	// Новый просмотр сбрасывает кеш, следующая выборка видит обе карточки.
	if _, err := svc.RecordView(42, "b"); err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	ids, err = svc.ViewedCardIDs(42)
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("после сброса кеша ожидали 2 карточки, получили %v", ids)
	}
}

func TestRecordViewValidation(t *testing.T) {
	svc := NewService(newMemViewRepo(), nil, time.Minute)
	if _, err := svc.RecordView(0, "card-1"); !errors.Is(err, ErrBadUserID) {
		t.Fatalf("ожидали ErrBadUserID, получили %v", err)
	}
	if _, err := svc.RecordView(42, ""); !errors.Is(err, ErrBadCardID) {
		t.Fatalf("ожидали ErrBadCardID, получили %v", err)
	}
}

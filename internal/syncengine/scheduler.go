package syncengine

import (
	"context"
	"time"
)

// Scheduler: sabit aralıklı arka plan senkronu. Ad hoc timer zinciri
// yerine tek ticker ve açık bir Stop sapı kullanılır.
type Scheduler struct {
	engine   *Engine
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

func NewScheduler(engine *Engine, interval time.Duration) *Scheduler {
	return &Scheduler{
		engine:   engine,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (s *Scheduler) Start() {
	go s.run()
}

func (s *Scheduler) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			// Engine zaten drain halindeyse bu tetik no-op olur
			if _, err := s.engine.SyncForce(context.Background()); err != nil {
				s.engine.lg.Warnf("periyodik sync hatası: %v", err)
			}
		}
	}
}

// Stop: çalışan geçişin bitmesini bekler. Kalan girdiler pending kalır,
// bir sonraki açılışta drain kaldığı yerden devam eder.
func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

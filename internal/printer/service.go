package printer

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"restoran-pos-terminal/internal/models"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrJobNotFound     = errors.New("yazdırma işi bulunamadı")
	ErrJobNotFailed    = errors.New("yalnızca failed durumundaki işler yeniden yazdırılabilir")
	ErrDrawerRateLimit = errors.New("çekmece az önce açıldı, lütfen bekleyin")
)

// Driver: yazıcı/çekmece donanım yeteneği. Donanım bu servisten bağımsız
// arızalanabilir; hataları uyarı olarak loglanır, finansal duruma dokunmaz.
type Driver interface {
	Print(job *models.PrintJob) error
	OpenDrawer(profile string) error
}

type Service struct {
	db     *gorm.DB
	lg     *logrus.Logger
	driver Driver

	drawerMu          sync.Mutex
	lastDrawerOpen    time.Time
	drawerMinInterval time.Duration
}

func NewService(db *gorm.DB, lg *logrus.Logger, driver Driver, drawerMinInterval time.Duration) *Service {
	return &Service{db: db, lg: lg, driver: driver, drawerMinInterval: drawerMinInterval}
}

// Enqueue: fiş işi kuyruğa yazılır; fiilî yazdırmayı watcher dener.
func (s *Service) Enqueue(orderID uint) (*models.PrintJob, error) {
	job := models.PrintJob{
		LocalID: uuid.NewString(),
		OrderID: orderID,
		Status:  models.PrintJobPending,
	}
	if err := s.db.Create(&job).Error; err != nil {
		return nil, fmt.Errorf("yazdırma işi kaydedilemedi: %w", err)
	}
	return &job, nil
}

// Status: işin durumu.
func (s *Service) Status(jobID uint) (models.PrintJobStatus, error) {
	var job models.PrintJob
	if err := s.db.First(&job, jobID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", ErrJobNotFound
		}
		return "", fmt.Errorf("yazdırma işi okunamadı: %w", err)
	}
	return job.Status, nil
}

// Reprint: yalnızca failed iş tekrar kuyruğa alınır; pending ya da
// printed iş için hata döner.
func (s *Service) Reprint(jobID uint) error {
	var job models.PrintJob
	if err := s.db.First(&job, jobID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return ErrJobNotFound
		}
		return fmt.Errorf("yazdırma işi okunamadı: %w", err)
	}
	if job.Status != models.PrintJobFailed {
		return ErrJobNotFailed
	}
	job.Status = models.PrintJobPending
	job.LastError = ""
	if err := s.db.Save(&job).Error; err != nil {
		return fmt.Errorf("yazdırma işi güncellenemedi: %w", err)
	}
	return nil
}

// OpenDrawer: art arda açma denemeleri sınırlanır.
func (s *Service) OpenDrawer(profile string) error {
	s.drawerMu.Lock()
	if time.Since(s.lastDrawerOpen) < s.drawerMinInterval {
		s.drawerMu.Unlock()
		return ErrDrawerRateLimit
	}
	s.lastDrawerOpen = time.Now()
	s.drawerMu.Unlock()

	if err := s.driver.OpenDrawer(profile); err != nil {
		s.lg.Warnf("çekmece açılamadı: %v", err)
		return fmt.Errorf("çekmece açılamadı: %w", err)
	}
	return nil
}

// ProcessPending: bekleyen işleri sürücüye gönderir. Watcher tarafından
// sabit aralıkla çağrılır; hata işi failed yapar, başka hiçbir şeyi etkilemez.
func (s *Service) ProcessPending() int {
	var jobs []models.PrintJob
	if err := s.db.Where("status = ?", models.PrintJobPending).
		Order("created_at asc").Find(&jobs).Error; err != nil {
		s.lg.Warnf("yazdırma kuyruğu okunamadı: %v", err)
		return 0
	}

	printed := 0
	for i := range jobs {
		job := &jobs[i]
		job.Attempts++
		if err := s.driver.Print(job); err != nil {
			job.Status = models.PrintJobFailed
			job.LastError = err.Error()
			s.lg.Warnf("fiş yazdırılamadı (iş %d): %v", job.ID, err)
		} else {
			job.Status = models.PrintJobPrinted
			job.LastError = ""
			printed++
		}
		if err := s.db.Save(job).Error; err != nil {
			s.lg.Warnf("yazdırma işi durumu yazılamadı: %v", err)
		}
	}
	return printed
}

// Watcher: sabit aralıklı yazdırma görevi; açık Stop sapı ile durdurulur.
type Watcher struct {
	svc      *Service
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

func NewWatcher(svc *Service, interval time.Duration) *Watcher {
	return &Watcher{
		svc:      svc,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (w *Watcher) Start() {
	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-w.stop:
				return
			case <-ticker.C:
				w.svc.ProcessPending()
			}
		}
	}()
}

func (w *Watcher) Stop() {
	close(w.stop)
	<-w.done
}

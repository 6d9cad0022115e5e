package printer

import (
	"errors"
	"io"
	"path/filepath"
	"testing"
	"time"

	"restoran-pos-terminal/internal/database"
	"restoran-pos-terminal/internal/models"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// flakyDriver: failNext açıkken yazdırma hatası simüle eder.
type flakyDriver struct {
	failNext    bool
	printed     int
	drawerOpens int
}

func (d *flakyDriver) Print(_ *models.PrintJob) error {
	if d.failNext {
		return errors.New("yazıcı kağıt bitti")
	}
	d.printed++
	return nil
}

func (d *flakyDriver) OpenDrawer(_ string) error {
	d.drawerOpens++
	return nil
}

func newTestPrinter(t *testing.T, driver Driver, minInterval time.Duration) (*Service, *gorm.DB) {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "pos.db"))
	require.NoError(t, err)

	lg := logrus.New()
	lg.SetOutput(io.Discard)
	return NewService(db, lg, driver, minInterval), db
}

func TestProcessPendingPrints(t *testing.T) {
	driver := &flakyDriver{}
	svc, _ := newTestPrinter(t, driver, 0)

	job, err := svc.Enqueue(42)
	require.NoError(t, err)
	require.Equal(t, models.PrintJobPending, job.Status)

	require.Equal(t, 1, svc.ProcessPending())
	require.Equal(t, 1, driver.printed)

	status, err := svc.Status(job.ID)
	require.NoError(t, err)
	require.Equal(t, models.PrintJobPrinted, status)
}

func TestFailedJobStaysAndCanReprint(t *testing.T) {
	driver := &flakyDriver{failNext: true}
	svc, _ := newTestPrinter(t, driver, 0)

	job, err := svc.Enqueue(42)
	require.NoError(t, err)

	require.Equal(t, 0, svc.ProcessPending())
	status, err := svc.Status(job.ID)
	require.NoError(t, err)
	require.Equal(t, models.PrintJobFailed, status)

	// Kağıt takıldı, tekrar dene
	driver.failNext = false
	require.NoError(t, svc.Reprint(job.ID))
	require.Equal(t, 1, svc.ProcessPending())

	status, err = svc.Status(job.ID)
	require.NoError(t, err)
	require.Equal(t, models.PrintJobPrinted, status)
}

func TestReprintOnlyFromFailed(t *testing.T) {
	driver := &flakyDriver{}
	svc, _ := newTestPrinter(t, driver, 0)

	job, err := svc.Enqueue(42)
	require.NoError(t, err)

	// Pending iş yeniden yazdırılamaz
	require.ErrorIs(t, svc.Reprint(job.ID), ErrJobNotFailed)

	svc.ProcessPending()
	require.ErrorIs(t, svc.Reprint(job.ID), ErrJobNotFailed)

	require.ErrorIs(t, svc.Reprint(9999), ErrJobNotFound)
}

func TestPrintFailureDoesNotTouchOtherJobs(t *testing.T) {
	driver := &flakyDriver{failNext: true}
	svc, db := newTestPrinter(t, driver, 0)

	jobA, err := svc.Enqueue(1)
	require.NoError(t, err)
	svc.ProcessPending()

	driver.failNext = false
	jobB, err := svc.Enqueue(2)
	require.NoError(t, err)
	require.Equal(t, 1, svc.ProcessPending())

	var gotA, gotB models.PrintJob
	require.NoError(t, db.First(&gotA, jobA.ID).Error)
	require.NoError(t, db.First(&gotB, jobB.ID).Error)
	require.Equal(t, models.PrintJobFailed, gotA.Status)
	require.Equal(t, models.PrintJobPrinted, gotB.Status)
}

func TestOpenDrawerRateLimited(t *testing.T) {
	driver := &flakyDriver{}
	svc, _ := newTestPrinter(t, driver, time.Hour)

	require.NoError(t, svc.OpenDrawer("default"))
	require.ErrorIs(t, svc.OpenDrawer("default"), ErrDrawerRateLimit)
	require.Equal(t, 1, driver.drawerOpens)
}

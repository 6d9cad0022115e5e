package printer

import (
	"restoran-pos-terminal/internal/models"

	"github.com/sirupsen/logrus"
)

// LogDriver: gerçek donanım sürücüsü ayrı bir süreçte yaşar; bu sürücü
// geliştirme ve donanımsız kurulumlar için işi yalnızca loglar.
type LogDriver struct {
	Lg *logrus.Logger
}

func (d *LogDriver) Print(job *models.PrintJob) error {
	d.Lg.Infof("fiş yazdırıldı (simülasyon): iş=%d sipariş=%d", job.ID, job.OrderID)
	return nil
}

func (d *LogDriver) OpenDrawer(profile string) error {
	d.Lg.Infof("çekmece açıldı (simülasyon): profil=%s", profile)
	return nil
}

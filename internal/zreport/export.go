package zreport

import (
	"bytes"
	"encoding/json"
	"fmt"

	"restoran-pos-terminal/internal/models"

	"github.com/xuri/excelize/v2"
)

// kurus: kuruş değerini TL string'ine çevirir (yalnızca dışa aktarım için).
func kurus(v int64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d,%02d TL", sign, v/100, v%100)
}

// Export: raporu şube başlığıyla .xlsx olarak üretir.
func (s *Service) Export(id uint) ([]byte, *models.ZReport, error) {
	report, err := s.Get(id)
	if err != nil {
		return nil, nil, err
	}

	var branch models.Branch
	if err := s.db.First(&branch, report.BranchID).Error; err != nil {
		branch.Name = fmt.Sprintf("Şube %d", report.BranchID)
	}

	buf, err := ExportExcel(report, branch.Name)
	if err != nil {
		return nil, nil, err
	}
	return buf, report, nil
}

// ExportExcel: Z raporunu .xlsx olarak üretir. Rapor verisi değişmez;
// bu yalnızca saklanan JSON'un okunabilir bir dökümüdür.
func ExportExcel(report *models.ZReport, branchName string) ([]byte, error) {
	var data ReportData
	if err := json.Unmarshal([]byte(report.ReportData), &data); err != nil {
		return nil, fmt.Errorf("rapor verisi çözümlenemedi: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "Z Raporu"
	f.SetSheetName("Sheet1", sheet)

	rows := [][]interface{}{
		{"Z RAPORU", branchName, report.ReportDate.Format("2006-01-02")},
		{},
		{"SATIŞLAR"},
		{"Brüt satış", kurus(data.Sales.Gross)},
		{"İadeler", kurus(data.Sales.Refunds)},
		{"Net satış", kurus(data.Sales.Net)},
		{"Nakit", kurus(data.Sales.Cash)},
		{"Kart", kurus(data.Sales.Card)},
		{"Sipariş adedi", data.Sales.OrderCount},
		{},
		{"GİDERLER"},
		{"Toplam gider", kurus(data.Expenses.Total)},
		{"Personel ödemeleri", kurus(data.Expenses.StaffPaymentsTotal)},
		{},
		{"KASA"},
		{"Açılış", kurus(data.CashDrawer.OpeningTotal)},
		{"Nakit satış", kurus(data.CashDrawer.CashSales)},
		{"Kart satış", kurus(data.CashDrawer.CardSales)},
		{"Giderler", kurus(data.CashDrawer.Expenses)},
		{"Personel ödemeleri", kurus(data.CashDrawer.StaffPayments)},
		{"Kuryeye verilen", kurus(data.CashDrawer.DriverCashGiven)},
		{"Kuryeden dönen", kurus(data.CashDrawer.DriverCashReturned)},
	}

	if len(data.CashDrawer.DriverCashBreakdown) > 0 {
		rows = append(rows, []interface{}{}, []interface{}{"KURYE DÖKÜMÜ"})
		rows = append(rows, []interface{}{"Kurye", "Topladığı nakit", "İade edeceği"})
		for _, d := range data.CashDrawer.DriverCashBreakdown {
			rows = append(rows, []interface{}{d.DriverName, kurus(d.CashCollected), kurus(d.CashToReturn)})
		}
	}

	if len(data.StaffReports) > 0 {
		rows = append(rows, []interface{}{}, []interface{}{"PERSONEL"})
		rows = append(rows, []interface{}{"Ad", "Rol", "Sipariş adedi", "Sipariş toplamı", "Aldığı ödeme"})
		for _, r := range data.StaffReports {
			rows = append(rows, []interface{}{
				r.Name, string(r.Role), len(r.OrdersDetails), kurus(r.OrdersTotal), kurus(r.StaffPaymentsReceived),
			})
		}
	}

	for i, row := range rows {
		for j, val := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			if err != nil {
				return nil, fmt.Errorf("hücre adresi hesaplanamadı: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, val); err != nil {
				return nil, fmt.Errorf("hücre yazılamadı: %w", err)
			}
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("Excel dosyası oluşturulamadı: %w", err)
	}
	return buf.Bytes(), nil
}

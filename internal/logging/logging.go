package logging

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// New: terminal log'u hem stdout'a hem de dönen dosyaya yazar.
// Offline cihazda log dosyası tek teşhis kaynağı olduğu için rotation şart.
func New(logPath string) *logrus.Logger {
	lg := logrus.New()
	lg.SetLevel(logrus.InfoLevel)
	lg.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})

	if logPath != "" {
		rotator := &lumberjack.Logger{
			Filename:   logPath,
			MaxSize:    20, // MB
			MaxBackups: 5,
			MaxAge:     30, // gün
			Compress:   true,
		}
		lg.SetOutput(io.MultiWriter(os.Stdout, rotator))
	}

	return lg
}

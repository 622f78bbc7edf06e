// Package version отдаёт информацию о сборке сервиса. Значения зашиваются
// при сборке:
//
//	go build -ldflags "-X .../internal/version.version=v1.2.0 \
//	  -X .../internal/version.commit=abc1234 -X .../internal/version.date=2026-08-28"
package version

import "fmt"

// Service — имя сервиса в health-ответах и стартовых логах.
const Service = "fms"

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info возвращает компоненты версии сборки.
func Info() (v, c, d string) { return version, commit, date }

// String возвращает однострочное описание сборки для /healthz и логов.
func String() string {
	return fmt.Sprintf("%s version=%s commit=%s date=%s", Service, version, commit, date)
}

package version

import "fmt"

// Заполняются при сборке через -ldflags:
//
//	-X github.com/vladislavdragonenkov/marketplace/internal/version.version=v1.0.0
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// Info возвращает компоненты версии сборки.
func Info() (v, c, d string) { return version, commit, date }

// String возвращает версию одной строкой для стартового лога и health-ответа.
func String() string {
	return fmt.Sprintf("version=%s commit=%s date=%s", version, commit, date)
}

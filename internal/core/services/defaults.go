package services

import (
	"log/slog"

	"github.com/vncsmyrnk/jessica-auth/internal/core/ports"
)

type noopMetrics struct{}

func (noopMetrics) RecordLogin(string)   {}
func (noopMetrics) RecordRefresh(string) {}
func (noopMetrics) RecordRefreshReuse()  {}
func (noopMetrics) RecordLogout(string)  {}
func (noopMetrics) RecordSwept(int64)    {}

func metricsOrNoop(m ports.AuthMetrics) ports.AuthMetrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}

func loggerOrDefault(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}

// SPDX-License-Identifier: Apache-2.0

// Package corelog is the structured logging surface the Manager and
// Reconciler use, backed by pterm.
package corelog

import (
	"github.com/pterm/pterm"

	"github.com/nimbusdata/branchroll/internal/redact"
)

// Logger reports the phases of a branch migration run: branch code,
// provider tag, phase, ids involved, and error text with password/pwd values
// redacted. It does not log connection descriptors.
type Logger interface {
	LogApplyStart(branchCode string, provider string)
	LogApplyComplete(branchCode string, appliedIDs []string)
	LogRollbackStart(branchCode string)
	LogRollbackComplete(branchCode string, targetID string)
	LogLockBusy(branchCode string)
	LogFailure(branchCode, phase string, err error)
	LogReconcileTick(succeeded, failed int)

	Info(msg string, args ...any)
}

type logger struct {
	pt pterm.Logger
}

type noopLogger struct{}

func New() Logger {
	return &logger{pt: pterm.DefaultLogger}
}

func NewNoopLogger() Logger {
	return &noopLogger{}
}

func (l *logger) LogApplyStart(branchCode string, providerTag string) {
	l.pt.Info("starting migration apply", l.pt.Args("branch", branchCode, "provider", providerTag))
}

func (l *logger) LogApplyComplete(branchCode string, appliedIDs []string) {
	l.pt.Info("migration apply complete", l.pt.Args("branch", branchCode, "applied", appliedIDs))
}

func (l *logger) LogRollbackStart(branchCode string) {
	l.pt.Info("starting migration rollback", l.pt.Args("branch", branchCode))
}

func (l *logger) LogRollbackComplete(branchCode string, targetID string) {
	l.pt.Info("migration rollback complete", l.pt.Args("branch", branchCode, "target", targetID))
}

func (l *logger) LogLockBusy(branchCode string) {
	l.pt.Warn("branch already in progress", l.pt.Args("branch", branchCode))
}

func (l *logger) LogFailure(branchCode, phase string, err error) {
	l.pt.Error("migration failed", l.pt.Args("branch", branchCode, "phase", phase, "error", redact.ConnectionDescriptor(err.Error())))
}

func (l *logger) LogReconcileTick(succeeded, failed int) {
	l.pt.Info("reconcile tick complete", l.pt.Args("succeeded", succeeded, "failed", failed))
}

func (l *logger) Info(msg string, args ...any) {
	l.pt.Info(msg, l.pt.Args(args))
}

func (l *noopLogger) LogApplyStart(branchCode string, providerTag string)         {}
func (l *noopLogger) LogApplyComplete(branchCode string, appliedIDs []string)     {}
func (l *noopLogger) LogRollbackStart(branchCode string)                         {}
func (l *noopLogger) LogRollbackComplete(branchCode string, targetID string)     {}
func (l *noopLogger) LogLockBusy(branchCode string)                             {}
func (l *noopLogger) LogFailure(branchCode, phase string, err error)            {}
func (l *noopLogger) LogReconcileTick(succeeded, failed int)                    {}
func (l *noopLogger) Info(msg string, args ...any)                             {}

//go:build !sqlite

package storage

import (
	"errors"

	logx "remindd/pkg/logx"
)

func openSQLite(Config, logx.Logger) (Store, error) {
	return nil, errors.New("sqlite storage driver not compiled in (build with -tags sqlite)")
}

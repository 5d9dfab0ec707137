package repository

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// ErrConstraintViolation はCHECK制約などのデータ制約に違反した場合に返される。
var ErrConstraintViolation = errors.New("constraint violation")

// PostgreSQLのSQLSTATEコード
const (
	pqForeignKeyViolation pq.ErrorCode = "23503"
	pqUniqueViolation     pq.ErrorCode = "23505"
	pqCheckViolation      pq.ErrorCode = "23514"
)

// translateWriteError は書き込み時のドライバエラーをリポジトリのエラーに変換する。
// 外部キー違反（ユーザーが既に削除されている）はErrNotFound、
// CHECK制約違反はErrConstraintViolationとしてラップする。
func translateWriteError(err error, action string) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case pqForeignKeyViolation:
			return fmt.Errorf("%s: %w", action, ErrNotFound)
		case pqCheckViolation, pqUniqueViolation:
			return fmt.Errorf("%s: %w: %s", action, ErrConstraintViolation, pqErr.Constraint)
		}
	}
	return fmt.Errorf("%s: %w", action, err)
}

package shared

import "fmt"

// DocumentLockKey builds the redis key guarding post/cancel of one document.
func DocumentLockKey(companyID, documentID int64) string {
	return fmt.Sprintf("ledger:company:%d:document:%d:lock", companyID, documentID)
}

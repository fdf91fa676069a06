package model

import "time"

type SyncTaskKind string

const (
	SyncTaskUpdateEntitlement SyncTaskKind = "update_entitlement"
	SyncTaskDisable           SyncTaskKind = "disable"
)

type SyncTaskStatus string

const (
	SyncTaskPending SyncTaskStatus = "pending"
	SyncTaskSent    SyncTaskStatus = "sent"
)

// SyncTask is one row of the provisioning outbox. It is written inside the
// same transaction as the entitlement it mirrors, so a committed local state
// always has a pending push even if the process dies right after commit.
type SyncTask struct {
	ID                string // ULID
	UserID            string
	ProvisioningUUID  string
	Kind              SyncTaskKind
	ExpireAt          time.Time
	TrafficLimitBytes *int64
	DeviceLimit       *int
	Status            SyncTaskStatus
	Attempts          int
	NextAttemptAt     time.Time
	LastError         string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

package onos

import "errors"

// Sentinel errors returned by the LeadershipService.
var (
	// ErrInvalidConfig is returned when the configuration is invalid.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrSubstrateRequired is returned when the clustering substrate is nil.
	ErrSubstrateRequired = errors.New("clustering substrate is required")

	// ErrClusterServiceRequired is returned when the cluster service is nil.
	ErrClusterServiceRequired = errors.New("cluster service is required")

	// ErrTopicNameRequired is returned when an election topic name is empty.
	ErrTopicNameRequired = errors.New("topic name is required")

	// ErrLeaderBoardUnsupported is returned by LeaderBoard; a cluster-wide
	// leadership view is out of scope for this service.
	ErrLeaderBoardUnsupported = errors.New("leader board is not supported")

	// ErrAlreadyStarted is returned when Start is called on a running service.
	ErrAlreadyStarted = errors.New("leadership service already started")

	// ErrNotStarted is returned when an operation requires a started service.
	ErrNotStarted = errors.New("leadership service not started")
)

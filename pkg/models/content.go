package models

import "time"

// ContentType names a model as "app.model".
type ContentType string

const (
	ContentTypeAutonomousSystem      ContentType = "peering.autonomoussystem"
	ContentTypeInternetExchange      ContentType = "peering.internetexchange"
	ContentTypeRouter                ContentType = "peering.router"
	ContentTypePeeringSession        ContentType = "peering.peeringsession"
	ContentTypeCommunity             ContentType = "peering.community"
	ContentTypeConfigurationTemplate ContentType = "peering.configurationtemplate"
	ContentTypeJobResult             ContentType = "extras.jobresult"
)

// ContentTypes lists every known content type.
var ContentTypes = []ContentType{
	ContentTypeAutonomousSystem,
	ContentTypeInternetExchange,
	ContentTypeRouter,
	ContentTypePeeringSession,
	ContentTypeCommunity,
	ContentTypeConfigurationTemplate,
	ContentTypeJobResult,
}

// Valid reports whether ct is a known content type.
func (ct ContentType) Valid() bool {
	for _, c := range ContentTypes {
		if c == ct {
			return true
		}
	}
	return false
}

// ObjectAction is the kind of change carried by an ObjectChange.
type ObjectAction string

const (
	ActionCreated ObjectAction = "created"
	ActionUpdated ObjectAction = "updated"
	ActionDeleted ObjectAction = "deleted"
)

// Event bus topics.
const (
	TopicObjectCreated = "object.created"
	TopicObjectUpdated = "object.updated"
	TopicObjectDeleted = "object.deleted"
	TopicObjectAll     = "object.*"

	TopicJobCreated = "job.created"
	TopicJobUpdated = "job.updated"
	TopicJobAll     = "job.*"
)

// ObjectChange is the payload published on object.* topics.
type ObjectChange struct {
	Action      ObjectAction `json:"event"`
	ContentType ContentType  `json:"model"`
	ObjectID    int64        `json:"object_id"`
	Username    string       `json:"username"`
	RequestID   string       `json:"request_id"`
	Timestamp   time.Time    `json:"timestamp"`
	Data        any          `json:"data"`
}

// Topic returns the bus topic for the change's action.
func (c ObjectChange) Topic() string {
	return "object." + string(c.Action)
}

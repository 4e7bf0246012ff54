package models

// ProblemTypeBase prefixes every RFC 7807 problem type URI.
const ProblemTypeBase = "https://peering-manager.net/problems/"

// Problem represents an RFC 7807 Problem Details response.
type Problem struct {
	Type     string `json:"type" example:"https://peering-manager.net/problems/bad-request"`
	Title    string `json:"title" example:"Bad Request"`
	Status   int    `json:"status" example:"400"`
	Detail   string `json:"detail,omitempty" example:"invalid IP address"`
	Instance string `json:"instance,omitempty" example:"/api/v1/peering/peering-sessions"`
}

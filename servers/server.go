// Package servers defines the VPN server list data model: logical servers,
// immutable server list snapshots, and the presentation transforms
// (country grouping, sorting, search) applied to them.
package servers

// ServerFeature is a bitmask of optional features a logical server supports.
type ServerFeature int

const (
	FeatureSecureCore ServerFeature = 1 << iota
	FeatureTor
	FeatureP2P
	FeatureStreaming
)

// LogicalServer represents one VPN server as reported by the API.
type LogicalServer struct {
	// ID is the unique identifier of the server.
	ID string `json:"id"`
	// Name is the display name, e.g. "IS#9".
	Name string `json:"name"`
	// ExitCountry is the ISO 3166-1 alpha-2 code of the exit country.
	ExitCountry string `json:"exit_country"`
	// Load is the current server load in percent.
	Load int `json:"load"`
	// Tier is the minimum subscription tier required to use the server.
	Tier int `json:"tier"`
	// Enabled is false while the server is under maintenance.
	Enabled bool `json:"enabled"`
	// Features is the bitmask of features the server supports.
	Features ServerFeature `json:"features"`
}

// UnderMaintenance reports whether the server is disabled for maintenance.
func (s LogicalServer) UnderMaintenance() bool {
	return !s.Enabled
}

// ServerList is one immutable fetched server list plus its source timestamp.
// A ServerList is never mutated after creation; an update means replacing
// the holder's reference with a new snapshot.
type ServerList struct {
	servers   []LogicalServer
	updatedAt int64
}

// NewServerList builds a snapshot from the given servers and the update
// timestamp supplied by the data source. The slice is copied so later
// mutation by the caller cannot leak into the snapshot.
func NewServerList(list []LogicalServer, updatedAt int64) *ServerList {
	servers := make([]LogicalServer, len(list))
	copy(servers, list)
	return &ServerList{servers: servers, updatedAt: updatedAt}
}

// Servers returns the servers in this snapshot.
// The returned slice must not be modified.
func (l *ServerList) Servers() []LogicalServer {
	return l.servers
}

// Len returns the number of servers in the snapshot.
func (l *ServerList) Len() int {
	return len(l.servers)
}

// UpdatedAt returns the source timestamp of the snapshot as a unix time.
// Timestamps come from the data source, never from the local clock.
func (l *ServerList) UpdatedAt() int64 {
	return l.updatedAt
}

// GetByID returns the server with the given ID.
func (l *ServerList) GetByID(id string) (LogicalServer, bool) {
	for _, s := range l.servers {
		if s.ID == id {
			return s, true
		}
	}
	return LogicalServer{}, false
}

// GetByName returns the server with the given display name.
func (l *ServerList) GetByName(name string) (LogicalServer, bool) {
	for _, s := range l.servers {
		if s.Name == name {
			return s, true
		}
	}
	return LogicalServer{}, false
}

package caldav

// Calendar describes one calendar collection on the CalDAV server.
type Calendar struct {
	// Path is the collection path on the server, used for queries.
	Path        string
	DisplayName string
}

// Package panel serves the door control page as an embedded asset.
//
// The page is a single HTML file that follows door state over the
// /api/v1/ws WebSocket and sends commands to POST /api/v1/door/commands.
// Unknown paths fall back to index.html so bookmarks like /door keep
// working.
package panel

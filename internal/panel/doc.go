// Package panel serves the browser dashboard as an embedded asset.
//
// The page is a thin client of the /api/v1 routes and the WebSocket hub;
// all robot logic lives in the service. Unknown paths fall back to
// index.html so client-side routes (Home, Edit, Manual) resolve.
package panel

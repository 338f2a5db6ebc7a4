package sync

import "time"

// HTTPRequestTimeout is the default timeout for all HTTP requests to external APIs.
const HTTPRequestTimeout = 60 * time.Second

const DefaultCRMEndpoint = "https://api.hubapi.com"

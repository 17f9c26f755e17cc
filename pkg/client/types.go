package client

// Role is the wire form of an auth role.
type Role struct {
	RoleID      string   `json:"roleId,omitempty"`
	Description string   `json:"description"`
	Scopes      []string `json:"scopes"`
}

// HookMetadata is the metadata block of a hook definition.
type HookMetadata struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Owner        string `json:"owner"`
	EmailOnError bool   `json:"emailOnError"`
}

// Binding is a pulse exchange binding that triggers a hook.
type Binding struct {
	Exchange          string `json:"exchange"`
	RoutingKeyPattern string `json:"routingKeyPattern"`
}

// Hook is the wire form of a hook definition.
type Hook struct {
	HookGroupID   string                 `json:"hookGroupId,omitempty"`
	HookID        string                 `json:"hookId,omitempty"`
	Metadata      HookMetadata           `json:"metadata"`
	Schedule      []string               `json:"schedule"`
	Bindings      []Binding              `json:"bindings"`
	Task          map[string]interface{} `json:"task"`
	TriggerSchema map[string]interface{} `json:"triggerSchema"`
}

// WorkerType is the wire form of a provisioner worker-type definition.
type WorkerType struct {
	WorkerType        string                   `json:"workerType,omitempty"`
	Description       string                   `json:"description"`
	Owner             string                   `json:"owner"`
	MinCapacity       int                      `json:"minCapacity"`
	MaxCapacity       int                      `json:"maxCapacity"`
	ScalingRatio      float64                  `json:"scalingRatio"`
	MinPrice          float64                  `json:"minPrice"`
	MaxPrice          float64                  `json:"maxPrice"`
	CanUseOndemand    bool                     `json:"canUseOndemand"`
	CanUseSpot        bool                     `json:"canUseSpot"`
	InstanceTypes     []map[string]interface{} `json:"instanceTypes"`
	Regions           []map[string]interface{} `json:"regions"`
	AvailabilityZones []map[string]interface{} `json:"availabilityZones"`
	LaunchSpec        map[string]interface{}   `json:"launchSpec"`
	UserData          map[string]interface{}   `json:"userData"`
	Secrets           map[string]interface{}   `json:"secrets"`
	Scopes            []string                 `json:"scopes"`

	// LastModified is set by the service and never sent back.
	LastModified string `json:"lastModified,omitempty"`
}

// hookGroupList is the response of the hook group listing endpoint.
type hookGroupList struct {
	Groups []string `json:"groups"`
}

// hookList is the response of the per-group hook listing endpoint.
type hookList struct {
	Hooks []Hook `json:"hooks"`
}

// errorBody is the JSON error document returned by the service.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

package resources

import (
	"github.com/ciadmin/ciadmin/pkg/client"
	"github.com/ciadmin/ciadmin/pkg/engine"
)

// WorkerType is a provisioner worker-type definition.
type WorkerType struct {
	Name              string                   `json:"workerType" validate:"required"`
	Description       string                   `json:"description"`
	Owner             string                   `json:"owner" validate:"required"`
	MinCapacity       int                      `json:"minCapacity" validate:"gte=0"`
	MaxCapacity       int                      `json:"maxCapacity" validate:"gtefield=MinCapacity"`
	ScalingRatio      float64                  `json:"scalingRatio" validate:"gte=0"`
	MinPrice          float64                  `json:"minPrice" validate:"gte=0"`
	MaxPrice          float64                  `json:"maxPrice" validate:"gtefield=MinPrice"`
	CanUseOndemand    bool                     `json:"canUseOndemand"`
	CanUseSpot        bool                     `json:"canUseSpot"`
	InstanceTypes     []map[string]interface{} `json:"instanceTypes"`
	Regions           []map[string]interface{} `json:"regions"`
	AvailabilityZones []map[string]interface{} `json:"availabilityZones"`
	LaunchSpec        map[string]interface{}   `json:"launchSpec"`
	UserData          map[string]interface{}   `json:"userData"`
	Secrets           map[string]interface{}   `json:"secrets"`
	Scopes            []string                 `json:"scopes"`
}

// NewWorkerType returns a normalized copy of wt.
func NewWorkerType(wt WorkerType) *WorkerType {
	out := wt
	out.InstanceTypes = cloneMaps(wt.InstanceTypes)
	out.Regions = cloneMaps(wt.Regions)
	out.AvailabilityZones = cloneMaps(wt.AvailabilityZones)
	out.LaunchSpec = cloneMap(wt.LaunchSpec)
	out.UserData = cloneMap(wt.UserData)
	out.Secrets = cloneMap(wt.Secrets)
	out.Scopes = NormalizeScopes(wt.Scopes)
	return &out
}

// WorkerTypeFromAPI converts a worker type returned by the service. Server
// maintained fields such as lastModified are dropped.
func WorkerTypeFromAPI(api client.WorkerType) *WorkerType {
	return NewWorkerType(WorkerType{
		Name:              api.WorkerType,
		Description:       api.Description,
		Owner:             api.Owner,
		MinCapacity:       api.MinCapacity,
		MaxCapacity:       api.MaxCapacity,
		ScalingRatio:      api.ScalingRatio,
		MinPrice:          api.MinPrice,
		MaxPrice:          api.MaxPrice,
		CanUseOndemand:    api.CanUseOndemand,
		CanUseSpot:        api.CanUseSpot,
		InstanceTypes:     api.InstanceTypes,
		Regions:           api.Regions,
		AvailabilityZones: api.AvailabilityZones,
		LaunchSpec:        api.LaunchSpec,
		UserData:          api.UserData,
		Secrets:           api.Secrets,
		Scopes:            api.Scopes,
	})
}

// ID returns "AwsProvisionerWorkerType=<workerType>".
func (w *WorkerType) ID() string {
	return string(engine.KindWorkerType) + "=" + w.Name
}

// Kind returns engine.KindWorkerType.
func (w *WorkerType) Kind() engine.Kind {
	return engine.KindWorkerType
}

// Equal reports whether other is a worker type with identical fields.
func (w *WorkerType) Equal(other engine.Resource) bool {
	o, ok := other.(*WorkerType)
	if !ok {
		return false
	}
	return w.Name == o.Name && jsonEqual(w.ToAPI(), o.ToAPI())
}

// String renders the worker type for humans.
func (w *WorkerType) String() string {
	return formatResource(w.ID(),
		field{"workerType", w.Name},
		field{"description", w.Description},
		field{"owner", w.Owner},
		field{"minCapacity", w.MinCapacity},
		field{"maxCapacity", w.MaxCapacity},
		field{"scalingRatio", w.ScalingRatio},
		field{"minPrice", w.MinPrice},
		field{"maxPrice", w.MaxPrice},
		field{"canUseOndemand", w.CanUseOndemand},
		field{"canUseSpot", w.CanUseSpot},
		field{"instanceTypes", w.InstanceTypes},
		field{"regions", w.Regions},
		field{"availabilityZones", w.AvailabilityZones},
		field{"launchSpec", w.LaunchSpec},
		field{"userData", w.UserData},
		field{"secrets", w.Secrets},
		field{"scopes", w.Scopes},
	)
}

// ToAPI returns the request body for create and update calls.
func (w *WorkerType) ToAPI() client.WorkerType {
	return client.WorkerType{
		Description:       w.Description,
		Owner:             w.Owner,
		MinCapacity:       w.MinCapacity,
		MaxCapacity:       w.MaxCapacity,
		ScalingRatio:      w.ScalingRatio,
		MinPrice:          w.MinPrice,
		MaxPrice:          w.MaxPrice,
		CanUseOndemand:    w.CanUseOndemand,
		CanUseSpot:        w.CanUseSpot,
		InstanceTypes:     cloneMaps(w.InstanceTypes),
		Regions:           cloneMaps(w.Regions),
		AvailabilityZones: cloneMaps(w.AvailabilityZones),
		LaunchSpec:        cloneMap(w.LaunchSpec),
		UserData:          cloneMap(w.UserData),
		Secrets:           cloneMap(w.Secrets),
		Scopes:            append([]string{}, w.Scopes...),
	}
}

// Validate checks required fields and capacity/price ranges.
func (w *WorkerType) Validate() error {
	return validate.Struct(w)
}

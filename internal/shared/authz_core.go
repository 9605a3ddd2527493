package shared

// Resources managed by the administration API.
const (
	ResourceUser       = "USER"
	ResourceRole       = "ROLE"
	ResourcePermission = "PERMISSION"
	ResourceResource   = "RESOURCE"
	ResourceAction     = "ACTION"
)

// Actions recognised on every resource.
const (
	ActionCreate = "CREATE"
	ActionRead   = "READ"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
	ActionList   = "LIST"
)

// CoreResources lists the resources guarded by the API.
func CoreResources() []string {
	return []string{
		ResourceUser,
		ResourceRole,
		ResourcePermission,
		ResourceResource,
		ResourceAction,
	}
}

// CoreActions lists the actions guarded by the API.
func CoreActions() []string {
	return []string{
		ActionCreate,
		ActionRead,
		ActionUpdate,
		ActionDelete,
		ActionList,
	}
}

package monday

// GraphQL documents sent to the Monday API. Paginated queries take $page
// (1-based) and $limit; per-board queries take $board_id.
const (
	workspacesQuery = `query ($page: Int!, $limit: Int!) {
  workspaces(limit: $limit, page: $page) {
    id
    name
    kind
    description
  }
}`

	boardsQuery = `query ($page: Int!, $limit: Int!) {
  boards(limit: $limit, page: $page, order_by: created_at) {
    id
    name
    description
    state
    updated_at
    workspace_id
  }
}`

	boardIDsQuery = `query ($page: Int!, $limit: Int!) {
  boards(limit: $limit, page: $page, order_by: created_at) {
    id
  }
}`

	columnsQuery = `query ($board_id: ID!) {
  boards(ids: [$board_id]) {
    columns {
      id
      title
      type
    }
  }
}`

	groupsQuery = `query ($board_id: ID!) {
  boards(ids: [$board_id]) {
    groups {
      id
      title
      color
      position
    }
  }
}`

	boardViewsQuery = `query ($board_id: ID!) {
  boards(ids: [$board_id]) {
    views {
      id
      name
      type
      settings_str
    }
  }
}`

	itemsQuery = `query ($board_id: ID!, $page: Int!, $limit: Int!) {
  boards(ids: [$board_id]) {
    items(limit: $limit, page: $page) {
      id
      name
      state
      created_at
      updated_at
      group {
        id
      }
      column_values {
        id
        text
        value
      }
    }
  }
}`
)

package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "CivicDesk API",
        "description": "Civic issue reporting and lifecycle platform",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login and profile"},
        {"name": "Issues", "description": "Citizen issue reporting and voting"},
        {"name": "Lifecycle", "description": "Authority actions on issues"},
        {"name": "Departments", "description": "Department configuration and reporting"},
        {"name": "Points", "description": "Reporter points and leaderboard"},
        {"name": "Notifications", "description": "User notifications"},
        {"name": "Admin", "description": "Operational endpoints"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "responses": {
                    "200": {"description": "OK"},
                    "401": {"description": "Invalid credentials"},
                    "429": {"description": "Too many attempts"}
                }
            }
        },
        "/auth/me": {
            "get": {
                "tags": ["Authentication"],
                "summary": "Current user profile",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/issues": {
            "post": {
                "tags": ["Issues"],
                "summary": "Report a civic issue",
                "responses": {
                    "200": {"description": "Merged into an existing issue"},
                    "201": {"description": "New issue created"}
                }
            },
            "get": {
                "tags": ["Issues"],
                "summary": "List issues",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/issues/{id}": {
            "get": {
                "tags": ["Issues"],
                "summary": "Issue detail",
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not found"}}
            },
            "patch": {
                "tags": ["Issues"],
                "summary": "Edit an open issue",
                "responses": {"200": {"description": "OK"}, "409": {"description": "Not open"}}
            },
            "delete": {
                "tags": ["Issues"],
                "summary": "Delete an open issue",
                "responses": {"204": {"description": "Deleted"}, "409": {"description": "Not open"}}
            }
        },
        "/issues/{id}/upvote": {
            "post": {
                "tags": ["Issues"],
                "summary": "Upvote an issue",
                "responses": {"200": {"description": "OK"}, "409": {"description": "Already upvoted"}}
            },
            "delete": {
                "tags": ["Issues"],
                "summary": "Withdraw an upvote",
                "responses": {"200": {"description": "OK"}, "409": {"description": "Not upvoted"}}
            }
        },
        "/issues/{id}/accept": {
            "post": {
                "tags": ["Lifecycle"],
                "summary": "Accept an open issue",
                "responses": {"200": {"description": "OK"}, "409": {"description": "Not open"}}
            }
        },
        "/issues/{id}/decline": {
            "post": {
                "tags": ["Lifecycle"],
                "summary": "Decline an open issue",
                "responses": {"200": {"description": "OK"}, "409": {"description": "Not open"}}
            }
        },
        "/issues/{id}/start": {
            "post": {
                "tags": ["Lifecycle"],
                "summary": "Start work on an accepted issue",
                "responses": {"200": {"description": "OK"}, "409": {"description": "Not accepted"}}
            }
        },
        "/issues/{id}/progress": {
            "patch": {
                "tags": ["Lifecycle"],
                "summary": "Record work progress",
                "responses": {"200": {"description": "OK"}, "409": {"description": "Invalid state"}}
            }
        },
        "/departments": {
            "get": {
                "tags": ["Departments"],
                "summary": "List departments",
                "responses": {"200": {"description": "OK"}}
            },
            "post": {
                "tags": ["Departments"],
                "summary": "Create a department",
                "responses": {"201": {"description": "Created"}}
            }
        },
        "/departments/performance": {
            "get": {
                "tags": ["Departments"],
                "summary": "Department performance aggregates",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/points/me": {
            "get": {
                "tags": ["Points"],
                "summary": "Caller's point total and ledger history",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/points/leaderboard": {
            "get": {
                "tags": ["Points"],
                "summary": "Community leaderboard",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/notifications": {
            "get": {
                "tags": ["Notifications"],
                "summary": "Caller's notifications",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/admin/sweep": {
            "post": {
                "tags": ["Admin"],
                "summary": "Run an SLA escalation sweep now",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/admin/recalculate": {
            "post": {
                "tags": ["Admin"],
                "summary": "Recompute priority scores",
                "responses": {"200": {"description": "OK"}}
            }
        },
        "/admin/export": {
            "get": {
                "tags": ["Admin"],
                "summary": "Download the department performance report",
                "responses": {"200": {"description": "OK"}}
            }
        }
    },
    "definitions": {
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"type": "object"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}

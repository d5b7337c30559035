package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Campus Core API",
        "description": "Student lifecycle and financial reconciliation engine",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login, refresh and logout"},
        {"name": "Applications", "description": "Course admission applications"},
        {"name": "Registrations", "description": "Registration finalization"},
        {"name": "Finance", "description": "Payment ledger and reconciliation"},
        {"name": "Statements", "description": "Asynchronous finance statements"},
        {"name": "Catalog", "description": "Read-only course and subject catalog"},
        {"name": "Dashboard", "description": "Per-role aggregated dashboards"}
    ],
    "paths": {
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "Tokens issued"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/auth/refresh": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Refresh access token",
                "responses": {
                    "200": {"description": "Tokens rotated"},
                    "401": {"description": "Expired or revoked token"}
                }
            }
        },
        "/auth/logout": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Revoke refresh token",
                "responses": {
                    "204": {"description": "Session revoked"}
                }
            }
        },
        "/applications": {
            "get": {
                "tags": ["Applications"],
                "summary": "List applications",
                "responses": {
                    "200": {"description": "Applications page"}
                }
            },
            "post": {
                "tags": ["Applications"],
                "summary": "Submit a course application",
                "responses": {
                    "201": {"description": "Application created"},
                    "409": {"description": "Duplicate approved application"}
                }
            }
        },
        "/applications/{id}/decision": {
            "patch": {
                "tags": ["Applications"],
                "summary": "Decide a pending application",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Application decided"},
                    "403": {"description": "Actor role not permitted"},
                    "409": {"description": "Application already decided"}
                }
            }
        },
        "/registrations": {
            "post": {
                "tags": ["Registrations"],
                "summary": "Finalize registration",
                "responses": {
                    "201": {"description": "Registration created"},
                    "400": {"description": "Invalid subject selection"},
                    "409": {"description": "Already registered"},
                    "412": {"description": "No approved application"}
                }
            }
        },
        "/registrations/me": {
            "get": {
                "tags": ["Registrations"],
                "summary": "Current student's registration",
                "responses": {
                    "200": {"description": "Registration with enrollments"},
                    "404": {"description": "No active registration"}
                }
            }
        },
        "/finance/payments": {
            "get": {
                "tags": ["Finance"],
                "summary": "List payments",
                "responses": {
                    "200": {"description": "Payments page"}
                }
            },
            "post": {
                "tags": ["Finance"],
                "summary": "Submit a payment",
                "responses": {
                    "201": {"description": "Payment recorded as pending"}
                }
            }
        },
        "/finance/payments/{id}/decision": {
            "patch": {
                "tags": ["Finance"],
                "summary": "Decide a pending payment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Payment decided"},
                    "403": {"description": "Actor role not permitted"},
                    "409": {"description": "Payment already decided"}
                }
            }
        },
        "/finance/payments/{id}/proof": {
            "post": {
                "tags": ["Finance"],
                "summary": "Attach proof of payment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Proof stored"}
                }
            }
        },
        "/finance/summary/me": {
            "get": {
                "tags": ["Finance"],
                "summary": "Current student's finance summary",
                "responses": {
                    "200": {"description": "Derived reconciliation"}
                }
            }
        },
        "/finance/statements": {
            "post": {
                "tags": ["Statements"],
                "summary": "Request a finance statement",
                "responses": {
                    "202": {"description": "Job queued"}
                }
            }
        },
        "/finance/statements/{id}": {
            "get": {
                "tags": ["Statements"],
                "summary": "Statement job status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Job status"}
                }
            }
        },
        "/courses": {
            "get": {
                "tags": ["Catalog"],
                "summary": "List courses",
                "responses": {
                    "200": {"description": "Courses"}
                }
            }
        },
        "/subjects": {
            "get": {
                "tags": ["Catalog"],
                "summary": "List subjects",
                "responses": {
                    "200": {"description": "Subjects page"}
                }
            }
        },
        "/dashboard": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Role-scoped dashboard",
                "responses": {
                    "200": {"description": "Aggregated dashboard"}
                }
            }
        }
    },
    "definitions": {
        "LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string"},
                "password": {"type": "string"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "details": {"type": "object"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "Envelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
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

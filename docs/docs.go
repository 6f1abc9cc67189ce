// Package docs holds the OpenAPI description served under /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
	"schemes": {{ marshal .Schemes }},
	"swagger": "2.0",
	"info": {
		"description": "{{escape .Description}}",
		"title": "{{.Title}}",
		"contact": {},
		"version": "{{.Version}}"
	},
	"host": "{{.Host}}",
	"basePath": "{{.BasePath}}",
	"paths": {
		"/boards/{id}/tasks": {
			"get": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"Tasks"
				],
				"summary": "List board tasks",
				"parameters": [
					{
						"type": "string",
						"description": "Board ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/handler.BoardTasksResponse"
						}
					},
					"403": {
						"description": "Forbidden",
						"schema": {
							"$ref": "#/definitions/handler.ErrorResponse"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handler.ErrorResponse"
						}
					}
				},
				"description": "Returns the tasks of a board grouped by column and ordered by position."
			},
			"post": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"Tasks"
				],
				"summary": "Create a task",
				"parameters": [
					{
						"type": "string",
						"description": "Board ID",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"description": "Task",
						"name": "task",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handler.CreateTaskRequest"
						}
					}
				],
				"responses": {
					"201": {
						"description": "Created",
						"schema": {
							"$ref": "#/definitions/model.Task"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handler.ErrorResponse"
						}
					},
					"403": {
						"description": "Forbidden",
						"schema": {
							"$ref": "#/definitions/handler.ErrorResponse"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handler.ErrorResponse"
						}
					}
				},
				"description": "Adds a task to a board column. Without a position it is appended.",
				"consumes": [
					"application/json"
				]
			}
		},
		"/boards/{id}/tasks/reorder": {
			"put": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"Tasks"
				],
				"summary": "Reorder tasks",
				"parameters": [
					{
						"type": "string",
						"description": "Board ID",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"description": "Final task slots",
						"name": "batch",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handler.ReorderRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/handler.MessageResponse"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handler.ErrorResponse"
						}
					},
					"403": {
						"description": "Forbidden",
						"schema": {
							"$ref": "#/definitions/handler.ErrorResponse"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handler.ErrorResponse"
						}
					}
				},
				"description": "Writes the final slots of several tasks at once. Every column touched must stay gap free.",
				"consumes": [
					"application/json"
				]
			}
		},
		"/tasks/{id}": {
			"get": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"Tasks"
				],
				"summary": "Get a task",
				"parameters": [
					{
						"type": "string",
						"description": "Task ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/model.Task"
						}
					},
					"403": {
						"description": "Forbidden",
						"schema": {
							"$ref": "#/definitions/handler.ErrorResponse"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handler.ErrorResponse"
						}
					}
				}
			},
			"patch": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"Tasks"
				],
				"summary": "Update a task",
				"parameters": [
					{
						"type": "string",
						"description": "Task ID",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"description": "Fields to change",
						"name": "patch",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handler.UpdateTaskRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/model.Task"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handler.ErrorResponse"
						}
					},
					"403": {
						"description": "Forbidden",
						"schema": {
							"$ref": "#/definitions/handler.ErrorResponse"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handler.ErrorResponse"
						}
					}
				},
				"description": "Changes task fields. A new status without a position moves the task to the end of that column.",
				"consumes": [
					"application/json"
				]
			},
			"delete": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"Tasks"
				],
				"summary": "Delete a task",
				"parameters": [
					{
						"type": "string",
						"description": "Task ID",
						"name": "id",
						"in": "path",
						"required": true
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/handler.MessageResponse"
						}
					},
					"403": {
						"description": "Forbidden",
						"schema": {
							"$ref": "#/definitions/handler.ErrorResponse"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handler.ErrorResponse"
						}
					}
				},
				"description": "Removes a task and closes the gap in its column."
			}
		},
		"/tasks/{id}/move": {
			"post": {
				"security": [
					{
						"BearerAuth": []
					}
				],
				"produces": [
					"application/json"
				],
				"tags": [
					"Tasks"
				],
				"summary": "Move a task",
				"parameters": [
					{
						"type": "string",
						"description": "Task ID",
						"name": "id",
						"in": "path",
						"required": true
					},
					{
						"description": "Target slot",
						"name": "move",
						"in": "body",
						"required": true,
						"schema": {
							"$ref": "#/definitions/handler.MoveTaskRequest"
						}
					}
				],
				"responses": {
					"200": {
						"description": "OK",
						"schema": {
							"$ref": "#/definitions/model.Task"
						}
					},
					"400": {
						"description": "Bad Request",
						"schema": {
							"$ref": "#/definitions/handler.ErrorResponse"
						}
					},
					"403": {
						"description": "Forbidden",
						"schema": {
							"$ref": "#/definitions/handler.ErrorResponse"
						}
					},
					"404": {
						"description": "Not Found",
						"schema": {
							"$ref": "#/definitions/handler.ErrorResponse"
						}
					}
				},
				"description": "Places a task at a position in a status column and reflows both columns.",
				"consumes": [
					"application/json"
				]
			}
		}
	},
	"definitions": {
		"handler.BoardTasksResponse": {
			"type": "object",
			"properties": {
				"board_id": {
					"type": "string"
				},
				"columns": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/handler.ColumnResponse"
					}
				}
			}
		},
		"handler.ColumnResponse": {
			"type": "object",
			"properties": {
				"status": {
					"type": "string",
					"enum": [
						"todo",
						"in-progress",
						"completed"
					]
				},
				"tasks": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/model.Task"
					}
				}
			}
		},
		"handler.CreateTaskRequest": {
			"type": "object",
			"required": [
				"title"
			],
			"properties": {
				"title": {
					"type": "string",
					"example": "Write release notes"
				},
				"description": {
					"type": "string"
				},
				"status": {
					"type": "string",
					"example": "todo"
				},
				"priority": {
					"type": "string",
					"example": "medium"
				},
				"position": {
					"type": "integer"
				}
			}
		},
		"handler.UpdateTaskRequest": {
			"type": "object",
			"properties": {
				"title": {
					"type": "string"
				},
				"description": {
					"type": "string"
				},
				"status": {
					"type": "string"
				},
				"priority": {
					"type": "string"
				},
				"position": {
					"type": "integer"
				}
			}
		},
		"handler.MoveTaskRequest": {
			"type": "object",
			"required": [
				"position",
				"status"
			],
			"properties": {
				"status": {
					"type": "string",
					"example": "in-progress"
				},
				"position": {
					"type": "integer",
					"example": 0
				}
			}
		},
		"handler.ReorderItem": {
			"type": "object",
			"required": [
				"id",
				"position",
				"status"
			],
			"properties": {
				"id": {
					"type": "string"
				},
				"status": {
					"type": "string"
				},
				"position": {
					"type": "integer"
				}
			}
		},
		"handler.ReorderRequest": {
			"type": "object",
			"required": [
				"tasks"
			],
			"properties": {
				"tasks": {
					"type": "array",
					"items": {
						"$ref": "#/definitions/handler.ReorderItem"
					}
				}
			}
		},
		"handler.MessageResponse": {
			"type": "object",
			"properties": {
				"message": {
					"type": "string"
				}
			}
		},
		"handler.ErrorResponse": {
			"type": "object",
			"properties": {
				"error": {
					"type": "string"
				}
			}
		},
		"model.Task": {
			"type": "object",
			"properties": {
				"id": {
					"type": "string"
				},
				"board_id": {
					"type": "string"
				},
				"title": {
					"type": "string"
				},
				"description": {
					"type": "string"
				},
				"status": {
					"type": "string",
					"enum": [
						"todo",
						"in-progress",
						"completed"
					]
				},
				"priority": {
					"type": "string",
					"enum": [
						"low",
						"medium",
						"high"
					]
				},
				"position": {
					"type": "integer"
				},
				"created_at": {
					"type": "string"
				},
				"updated_at": {
					"type": "string"
				}
			}
		}
	},
	"securityDefinitions": {
		"BearerAuth": {
			"description": "Type \"Bearer\" followed by a space and JWT token.",
			"type": "apiKey",
			"name": "Authorization",
			"in": "header"
		}
	}
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "Task Board API",
	Description:      "Ordering of tasks across the status columns of kanban boards.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}

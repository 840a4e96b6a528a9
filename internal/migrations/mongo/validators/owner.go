package validators

import "go.mongodb.org/mongo-driver/bson"

var ownerSchema = bson.M{
	"bsonType": "object",
	"required": []string{"type", "id"},
	"properties": bson.M{
		"type": bson.M{
			"bsonType":  "string",
			"minLength": 1,
			"maxLength": 64,
		},
		"id": bson.M{
			"bsonType":  "string",
			"minLength": 1,
			"maxLength": 128,
		},
	},
}

var uuidSchema = bson.M{
	"bsonType":  "string",
	"minLength": 36,
	"maxLength": 36,
}

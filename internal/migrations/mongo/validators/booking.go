package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"owner",
			"label",
			"state",
			"requested_times",
			"duration_min",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id":   uuidSchema,
			"owner": ownerSchema,

			"label": bson.M{
				"bsonType":  "string",
				"minLength": 2,
				"maxLength": 100,
			},

			"state": bson.M{
				"bsonType": "string",
				"enum": []string{
					"pending",
					"confirmed",
					"declined",
					"completed",
					"cancelled",
					"expired",
					"missed",
				},
			},

			"requested_times": bson.M{
				"bsonType": "array",
				"minItems": 1,
				"maxItems": 2,
				"items": bson.M{
					"bsonType": "date",
				},
			},

			"confirmed_time": bson.M{
				"bsonType": "date",
			},

			"duration_min": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  1,
				"maximum":  1440,
			},

			"padding_min": bson.M{
				"bsonType": []string{"int", "long"},
				"minimum":  0,
				"maximum":  1440,
			},

			"allow_overlap": bson.M{
				"bsonType": "bool",
			},

			"created_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}

package validators

import "go.mongodb.org/mongo-driver/bson"

var AvailabilityValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"owner",
			"start_date",
			"start_time",
			"end_time",
			"timezone",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			"_id":   uuidSchema,
			"owner": ownerSchema,

			"start_date": bson.M{
				"bsonType": "string",
				"pattern":  `^\d{4}-\d{2}-\d{2}$`,
			},

			"start_time": bson.M{
				"bsonType": "string",
				"pattern":  `^([01]\d|2[0-3]):[0-5]\d$`,
			},

			"end_time": bson.M{
				"bsonType": "string",
				"pattern":  `^([01]\d|2[0-3]):[0-5]\d$`,
			},

			"recurrence": bson.M{
				"bsonType":  "string",
				"maxLength": 4000,
			},

			"timezone": bson.M{
				"bsonType":  "string",
				"minLength": 1,
			},

			"recur_until": bson.M{
				"bsonType": "string",
				"pattern":  `^\d{4}-\d{2}-\d{2}$`,
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}

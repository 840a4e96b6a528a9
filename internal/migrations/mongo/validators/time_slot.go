package validators

import "go.mongodb.org/mongo-driver/bson"

var TimeSlotValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{"owner", "start", "end", "busy", "padding"},
		"properties": bson.M{
			"owner":   ownerSchema,
			"start":   bson.M{"bsonType": "date"},
			"end":     bson.M{"bsonType": "date"},
			"busy":    bson.M{"bsonType": "bool"},
			"padding": bson.M{"bsonType": "bool"},
			"booking_ids": bson.M{
				"bsonType": []string{"array", "null"},
			},
		},
	},
}
